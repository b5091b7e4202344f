package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kantin-reconciler/internal/domain"
	"kantin-reconciler/internal/store"
)

// expireContracts finds contract-expired profiles and cascades deletion for
// those past the grace window, skipping entities with in-flight orders.
func (e *Engine) expireContracts(ctx context.Context, sum *Summary) error {
	now := e.now().UTC()
	candidates, err := e.sel.ExpiredContracts(ctx, now)
	if err != nil {
		return fmt.Errorf("expired contracts query failed: %w", err)
	}
	sum.Checked = len(candidates)
	e.log.Info("found contract-expired profiles", zap.Int("count", len(candidates)))

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if d := gateProfile(p, now, e.cfg.GraceDays); !d.eligible {
			e.log.Info("skipping profile",
				zap.String("profile_id", p.ID),
				zap.String("reason", d.reason))
			sum.addSkip(p.ID, p.Username, d.reason)
			continue
		}
		sum.Expired++

		// Active transactions block deletion regardless of contract state.
		// A query failure here is recorded but does not block the cascade:
		// the guard is best-effort by contract.
		if p.TenantID != "" {
			active, err := e.sel.ActiveOrders(ctx, p.TenantID)
			if err != nil {
				e.log.Warn("active-order check failed",
					zap.String("profile_id", p.ID), zap.Error(err))
				sum.addError(p.ID, fmt.Errorf("active-order check failed: %w", err))
			} else if len(active) > 0 {
				sum.addSkip(p.ID, p.Username, fmt.Sprintf("Has %d active orders", len(active)))
				continue
			}
		}

		if err := e.cascadeDelete(ctx, p, sum); err != nil {
			e.log.Error("failed to delete profile",
				zap.String("profile_id", p.ID), zap.Error(err))
			sum.addError(p.ID, err)
			continue
		}

		sum.Deleted++
		sum.DeletedUsers = append(sum.DeletedUsers, DeletedUser{
			UserID:          p.ID,
			Username:        p.DisplayName(),
			Role:            p.Role,
			ContractEndDate: derefTime(p.ContractEndDate),
		})
		e.log.Info("profile deleted",
			zap.String("profile_id", p.ID),
			zap.String("role", p.Role))
	}
	return nil
}

// cascadeDelete removes one eligible root profile together with everything
// that exists only in relation to it. Per-item failures land in the summary
// and never stop sibling processing; only a failure to delete the root's own
// document is returned. The root's principal is deleted last and is not
// rolled back if it fails, the document is already gone at that point.
func (e *Engine) cascadeDelete(ctx context.Context, root domain.UserProfile, sum *Summary) error {
	switch root.Role {
	case domain.RoleTenant:
		if root.TenantID != "" {
			e.deleteTenantData(ctx, sum, root.TenantID, root.ID)
		}
	case domain.RoleOwnerBusiness:
		e.deleteOwnedTenants(ctx, sum, root.PrincipalID)
	}

	if err := e.docs.Delete(ctx, e.cfg.Collections.Users, root.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete profile document: %w", err)
	}
	if root.PrincipalID != "" {
		if err := e.deletePrincipal(ctx, root.PrincipalID); err != nil {
			// The document is gone and is not reconstructed; record and move on.
			e.log.Warn("principal deletion failed after document delete",
				zap.String("principal_id", root.PrincipalID), zap.Error(err))
			sum.addError(root.ID, fmt.Errorf("principal deletion failed: %w", err))
		}
	}
	return nil
}

// deleteTenantData removes a tenant's staff, products and orders.
// excludeProfileID keeps the root profile out of the staff sweep when the
// tenant itself is the cascade root.
func (e *Engine) deleteTenantData(ctx context.Context, sum *Summary, tenantID, excludeProfileID string) {
	staff, err := e.sel.TenantMembers(ctx, tenantID, excludeProfileID)
	if err != nil {
		sum.addError(tenantID, fmt.Errorf("staff query failed: %w", err))
	} else {
		for _, member := range staff {
			if err := e.deleteMemberProfile(ctx, member); err != nil {
				sum.addError(member.ID, fmt.Errorf("failed to delete staff: %w", err))
				continue
			}
			sum.CascadedData.Staff++
		}
	}

	products, err := e.sel.TenantProducts(ctx, tenantID)
	if err != nil {
		sum.addError(tenantID, fmt.Errorf("products query failed: %w", err))
	} else {
		for _, p := range products {
			if err := e.docs.Delete(ctx, e.cfg.Collections.Products, p.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				sum.addError(p.ID, fmt.Errorf("failed to delete product: %w", err))
				continue
			}
			sum.CascadedData.Products++
		}
	}

	orders, err := e.sel.TenantOrders(ctx, tenantID)
	if err != nil {
		sum.addError(tenantID, fmt.Errorf("orders query failed: %w", err))
	} else {
		for _, o := range orders {
			if err := e.docs.Delete(ctx, e.cfg.Collections.Orders, o.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				sum.addError(o.ID, fmt.Errorf("failed to delete order: %w", err))
				continue
			}
			sum.CascadedData.Orders++
		}
	}
}

// deleteOwnedTenants cascades every tenant a business owner created,
// including each tenant's own staff, products and orders.
func (e *Engine) deleteOwnedTenants(ctx context.Context, sum *Summary, ownerPrincipalID string) {
	if ownerPrincipalID == "" {
		return
	}
	tenants, err := e.sel.OwnedTenantProfiles(ctx, ownerPrincipalID)
	if err != nil {
		sum.addError(ownerPrincipalID, fmt.Errorf("owned tenants query failed: %w", err))
		return
	}
	e.log.Info("cascading owned tenants", zap.Int("count", len(tenants)))

	for _, tenant := range tenants {
		if tenant.TenantID != "" {
			// Exclude the tenant's own profile from the staff sweep; it is
			// deleted below together with its principal.
			e.deleteTenantData(ctx, sum, tenant.TenantID, tenant.ID)
		}
		if tenant.PrincipalID != "" {
			if err := e.deletePrincipal(ctx, tenant.PrincipalID); err != nil {
				sum.addError(tenant.ID, fmt.Errorf("failed to delete tenant principal: %w", err))
			}
		}
		if err := e.docs.Delete(ctx, e.cfg.Collections.Users, tenant.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			sum.addError(tenant.ID, fmt.Errorf("failed to delete tenant profile: %w", err))
			continue
		}
		sum.CascadedData.Tenants++
	}
}

// deleteMemberProfile removes one staff/member profile and its principal.
func (e *Engine) deleteMemberProfile(ctx context.Context, member domain.UserProfile) error {
	if member.PrincipalID != "" {
		if err := e.deletePrincipal(ctx, member.PrincipalID); err != nil {
			return err
		}
	}
	if err := e.docs.Delete(ctx, e.cfg.Collections.Users, member.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// deletePrincipal tolerates an already-missing principal: the identity-side
// account may have been removed out of band, which counts as satisfied.
func (e *Engine) deletePrincipal(ctx context.Context, principalID string) error {
	err := e.ids.DeletePrincipal(ctx, principalID)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		if errors.Is(err, store.ErrNotFound) {
			e.log.Debug("principal already gone", zap.String("principal_id", principalID))
		}
		return nil
	}
	return err
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
