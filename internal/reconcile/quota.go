package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kantin-reconciler/internal/domain"
)

// Quota enforcement: for every free-tier business owner, each owned tenant
// may keep a bounded number of active resources per kind; the excess is
// deactivated, never deleted. Eviction picks uniformly at random
// (shuffle-then-take): the policy deliberately avoids an "oldest wins" rule,
// so outcomes differ between runs and tests may only assert counts.
// Counting happens before mutating, which makes a compliant tenant a no-op
// and the whole pass idempotent.

func (e *Engine) enforceProductLimits(ctx context.Context, sum *Summary) error {
	owners, err := e.sel.FreeTierOwners(ctx)
	if err != nil {
		return fmt.Errorf("free-tier owners query failed: %w", err)
	}

	for _, owner := range owners {
		// Products are scoped by the owner's selected tenant ids, unlike
		// staff/tenant-user quotas which walk the tenants collection.
		for _, tenantID := range owner.SelectedTenantIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			products, err := e.sel.AvailableProducts(ctx, tenantID)
			if err != nil {
				sum.addError(tenantID, fmt.Errorf("product count failed: %w", err))
				continue
			}
			sum.ProductLimits.Checked++
			if len(products) <= e.cfg.ProductLimit {
				continue
			}

			excess := len(products) - e.cfg.ProductLimit
			e.log.Info("tenant over product limit",
				zap.String("tenant_id", tenantID),
				zap.Int("active", len(products)),
				zap.Int("limit", e.cfg.ProductLimit))

			e.rnd.Shuffle(len(products), func(i, j int) {
				products[i], products[j] = products[j], products[i]
			})
			for _, p := range products[:excess] {
				err := e.docs.Update(ctx, e.cfg.Collections.Products, p.ID, map[string]any{
					"is_available": false,
				})
				if err != nil {
					sum.addError(p.ID, fmt.Errorf("failed to deactivate product: %w", err))
					continue
				}
				sum.ProductLimits.Deactivated++
			}
			sum.ProductLimits.TenantsProcessed++
		}
	}
	return nil
}

func (e *Engine) enforceStaffLimits(ctx context.Context, sum *Summary) error {
	owners, err := e.sel.FreeTierOwners(ctx)
	if err != nil {
		return fmt.Errorf("free-tier owners query failed: %w", err)
	}

	for _, owner := range owners {
		tenants, err := e.sel.OwnerTenantRecords(ctx, owner.ID)
		if err != nil {
			sum.addError(owner.ID, fmt.Errorf("owner tenants query failed: %w", err))
			continue
		}
		for _, tenant := range tenants {
			if err := ctx.Err(); err != nil {
				return err
			}
			staff, err := e.sel.ActiveStaff(ctx, tenant.ID)
			if err != nil {
				sum.addError(tenant.ID, fmt.Errorf("staff count failed: %w", err))
				continue
			}
			sum.StaffLimits.Checked++
			if len(staff) <= e.cfg.StaffLimit {
				continue
			}

			excess := len(staff) - e.cfg.StaffLimit
			e.log.Info("tenant over staff limit",
				zap.String("tenant_id", tenant.ID),
				zap.Int("active", len(staff)),
				zap.Int("limit", e.cfg.StaffLimit))

			e.rnd.Shuffle(len(staff), func(i, j int) {
				staff[i], staff[j] = staff[j], staff[i]
			})
			for _, member := range staff[:excess] {
				err := e.docs.Update(ctx, e.cfg.Collections.Users, member.ID, map[string]any{
					"is_active":       false,
					"disabled_reason": domain.DisabledReasonStaffLimit,
				})
				if err != nil {
					sum.addError(member.ID, fmt.Errorf("failed to deactivate staff: %w", err))
					continue
				}
				sum.StaffLimits.Deactivated++
			}
			sum.StaffLimits.TenantsProcessed++
		}
	}
	return nil
}

func (e *Engine) enforceTenantUserLimits(ctx context.Context, sum *Summary) error {
	owners, err := e.sel.FreeTierOwners(ctx)
	if err != nil {
		return fmt.Errorf("free-tier owners query failed: %w", err)
	}

	for _, owner := range owners {
		tenants, err := e.sel.OwnerTenantRecords(ctx, owner.ID)
		if err != nil {
			sum.addError(owner.ID, fmt.Errorf("owner tenants query failed: %w", err))
			continue
		}
		for _, tenant := range tenants {
			if err := ctx.Err(); err != nil {
				return err
			}
			users, err := e.sel.ActiveTenantUsers(ctx, tenant.ID)
			if err != nil {
				sum.addError(tenant.ID, fmt.Errorf("tenant user count failed: %w", err))
				continue
			}
			sum.TenantUserLimits.Checked++
			if len(users) <= e.cfg.TenantUserLimit {
				continue
			}

			excess := len(users) - e.cfg.TenantUserLimit
			e.log.Info("tenant over user limit",
				zap.String("tenant_id", tenant.ID),
				zap.Int("active", len(users)),
				zap.Int("limit", e.cfg.TenantUserLimit))

			e.rnd.Shuffle(len(users), func(i, j int) {
				users[i], users[j] = users[j], users[i]
			})
			for _, u := range users[:excess] {
				err := e.docs.Update(ctx, e.cfg.Collections.Users, u.ID, map[string]any{
					"is_active":       false,
					"disabled_reason": domain.DisabledReasonTenantUserLimit,
				})
				if err != nil {
					sum.addError(u.ID, fmt.Errorf("failed to deactivate tenant user: %w", err))
					continue
				}
				sum.TenantUserLimits.Deactivated++
			}
			sum.TenantUserLimits.TenantsProcessed++
		}
	}
	return nil
}
