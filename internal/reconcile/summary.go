package reconcile

import "time"

// Outcome is the overall result of one reconciliation run.
type Outcome string

const (
	// OutcomeSuccess means the run completed with zero recorded errors.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means the run completed but at least one per-item or
	// task-level error was recorded.
	OutcomePartial Outcome = "partial"
	// OutcomeFailure means the run was aborted before all tasks executed;
	// the summary holds whatever was accumulated up to that point.
	OutcomeFailure Outcome = "failure"
)

// DeletedUser is one root profile removed by the contract-expiry cascade.
type DeletedUser struct {
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	ContractEndDate time.Time `json:"contractEndDate"`
}

// SkippedUser is a candidate the run examined but deliberately left alone.
type SkippedUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason"`
}

// ErrorDetail is one recorded per-item or task-level failure.
type ErrorDetail struct {
	EntityID string `json:"entityId"`
	Message  string `json:"message"`
}

// CascadeCounts breaks down the dependent entities removed by cascades.
type CascadeCounts struct {
	Tenants  int `json:"tenants"`
	Staff    int `json:"staff"`
	Products int `json:"products"`
	Orders   int `json:"orders"`
}

type InvitationSummary struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

type TrialSummary struct {
	Checked      int `json:"checked"`
	Downgraded   int `json:"downgraded"`
	AutoSelected int `json:"autoSelected"`
}

// LimitSummary covers one quota-enforcement pass (products, staff or
// tenant users). Checked counts tenants examined; TenantsProcessed counts
// tenants that actually had excess resources evicted.
type LimitSummary struct {
	Checked          int `json:"checked"`
	Deactivated      int `json:"deactivated"`
	TenantsProcessed int `json:"tenantsProcessed"`
}

// Summary is the run-scoped report accumulated by the coordinator and
// returned as the job's payload. It is never persisted by the engine itself.
type Summary struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Outcome   Outcome   `json:"outcome"`

	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`

	DeletedUsers []DeletedUser `json:"deletedUsers"`
	SkippedUsers []SkippedUser `json:"skippedUsers"`
	ErrorDetails []ErrorDetail `json:"errorDetails"`

	CascadedData     CascadeCounts     `json:"cascadedData"`
	InvitationCodes  InvitationSummary `json:"invitationCodes"`
	Trials           TrialSummary      `json:"trials"`
	ProductLimits    LimitSummary      `json:"productLimits"`
	StaffLimits      LimitSummary      `json:"staffLimits"`
	TenantUserLimits LimitSummary      `json:"tenantUserLimits"`
}

func newSummary(start time.Time) *Summary {
	return &Summary{
		StartTime:    start,
		DeletedUsers: []DeletedUser{},
		SkippedUsers: []SkippedUser{},
		ErrorDetails: []ErrorDetail{},
	}
}

// addError records a suppressed failure. Nothing in the run is allowed to
// swallow an error without landing here.
func (s *Summary) addError(entityID string, err error) {
	s.Errors++
	s.ErrorDetails = append(s.ErrorDetails, ErrorDetail{EntityID: entityID, Message: err.Error()})
}

func (s *Summary) addSkip(userID, username, reason string) {
	s.Skipped++
	s.SkippedUsers = append(s.SkippedUsers, SkippedUser{UserID: userID, Username: username, Reason: reason})
}
