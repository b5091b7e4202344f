package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kantin-reconciler/internal/domain"
)

// expireInvitationCodes flips active codes older than the configured TTL to
// expired. Codes are never deleted, only marked, so redemption attempts can
// still tell "expired" from "never existed".
func (e *Engine) expireInvitationCodes(ctx context.Context, sum *Summary) error {
	cutoff := e.now().UTC().Add(-e.cfg.InvitationTTL)
	codes, err := e.sel.StaleInvitationCodes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("stale invitation codes query failed: %w", err)
	}
	sum.InvitationCodes.Checked = len(codes)
	e.log.Info("found stale invitation codes", zap.Int("count", len(codes)))

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.docs.Update(ctx, e.cfg.Collections.InvitationCodes, code.ID, map[string]any{
			"status": domain.InvitationExpired,
		})
		if err != nil {
			sum.addError(code.ID, fmt.Errorf("failed to expire invitation code: %w", err))
			continue
		}
		sum.InvitationCodes.Expired++
	}
	return nil
}
