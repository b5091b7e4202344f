package reconcile

import (
	"fmt"
	"time"

	"kantin-reconciler/internal/domain"
)

// Skip reasons recorded for contract-expired candidates the run leaves alone.
const skipReasonStaff = "Staff - will be cascade deleted with tenant"

// gateDecision is the grace gate's verdict on one contract-expired profile.
type gateDecision struct {
	eligible bool
	reason   string // skip reason when not eligible
}

// gateProfile decides whether a contract-expired profile may be deleted now.
// Checked in order: grace window, role eligibility, staff exclusion. The
// active-order guard needs store access and is applied by the engine after
// this gate passes.
func gateProfile(p domain.UserProfile, now time.Time, graceDays int) gateDecision {
	threshold := now.Add(-time.Duration(graceDays) * 24 * time.Hour)

	if p.ContractEndDate != nil && p.ContractEndDate.After(threshold) {
		return gateDecision{reason: fmt.Sprintf("Grace period - %d days remaining", daysRemaining(*p.ContractEndDate, threshold))}
	}
	if p.Role != domain.RoleTenant && p.Role != domain.RoleOwnerBusiness {
		return gateDecision{reason: fmt.Sprintf("Invalid role: %s", p.Role)}
	}
	if p.SubRole == domain.SubRoleStaff {
		return gateDecision{reason: skipReasonStaff}
	}
	return gateDecision{eligible: true}
}

// daysRemaining counts the days until the grace window closes, rounded up so
// a partially elapsed day still reads as remaining.
func daysRemaining(contractEnd, threshold time.Time) int {
	d := contractEnd.Sub(threshold)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
