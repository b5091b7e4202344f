package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"kantin-reconciler/internal/domain"
)

// downgradeTrials flips lapsed trial subscriptions to the free tier. When
// the owner never manually picked which tenants to keep, the newest ones up
// to the free-tier cap are auto-selected and activated; the rest lose their
// selection flag but keep their current active state (deactivating them is a
// separate, currently disabled feature).
func (e *Engine) downgradeTrials(ctx context.Context, sum *Summary) error {
	now := e.now().UTC()
	candidates, err := e.sel.ExpiredTrials(ctx, now)
	if err != nil {
		return fmt.Errorf("expired trials query failed: %w", err)
	}
	sum.Trials.Checked = len(candidates)
	e.log.Info("found expired trials", zap.Int("count", len(candidates)))

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.docs.Update(ctx, e.cfg.Collections.Users, p.ID, map[string]any{
			"payment_status": domain.PaymentFree,
		})
		if err != nil {
			sum.addError(p.ID, fmt.Errorf("failed to downgrade trial: %w", err))
			continue
		}

		if !p.ManualTenantSelection {
			selected, err := e.autoSelectTenants(ctx, p.ID)
			if err != nil {
				sum.addError(p.ID, fmt.Errorf("tenant auto-selection failed: %w", err))
				continue
			}
			if selected {
				sum.Trials.AutoSelected++
			}
		}

		sum.Trials.Downgraded++
		e.log.Info("trial downgraded",
			zap.String("profile_id", p.ID),
			zap.String("username", p.DisplayName()))
	}
	return nil
}

// autoSelectTenants keeps the newest FreeTierTenantCap tenants selected and
// clears the flag on the rest. Owners with at most the cap are left
// untouched; the return reports whether a selection happened.
func (e *Engine) autoSelectTenants(ctx context.Context, profileID string) (bool, error) {
	tenants, err := e.sel.UserTenantRecords(ctx, profileID)
	if err != nil {
		return false, err
	}
	if len(tenants) <= e.cfg.FreeTierTenantCap {
		return false, nil
	}

	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.After(tenants[j].CreatedAt)
	})
	for i, tenant := range tenants {
		selected := i < e.cfg.FreeTierTenantCap
		fields := map[string]any{"selected_for_free_tier": selected}
		if selected {
			// Deselection only clears the flag; the tenant's active state
			// stays whatever it was.
			fields["is_active"] = true
		}
		if err := e.docs.Update(ctx, e.cfg.Collections.Tenants, tenant.ID, fields); err != nil {
			return false, fmt.Errorf("failed to update tenant %s: %w", tenant.ID, err)
		}
	}
	return true, nil
}
