package domain

import (
	"time"

	"kantin-reconciler/internal/store"
)

// Role values carried by user profile documents. The owner role exists under
// two spellings because of a historical rename; NormalizeRole folds the
// legacy value so the rest of the engine compares a single constant.
const (
	RoleOwnerBusiness       = "owner_business"
	RoleOwnerBusinessLegacy = "owner_bussines"
	RoleTenant              = "tenant"
	RoleAdminSystem         = "adminsystem"
	RoleGuest               = "guest"

	SubRoleStaff = "staff"
)

// Payment statuses of a business owner subscription.
const (
	PaymentTrial   = "trial"
	PaymentFree    = "free"
	PaymentPaid    = "paid"
	PaymentExpired = "expired"
)

// Disabled-reason markers written by quota eviction.
const (
	DisabledReasonStaffLimit      = "auto_staff_limit_exceeded"
	DisabledReasonTenantUserLimit = "auto_tenant_user_limit_exceeded"
)

// NormalizeRole folds legacy role spellings onto their current value.
func NormalizeRole(role string) string {
	if role == RoleOwnerBusinessLegacy {
		return RoleOwnerBusiness
	}
	return role
}

// OwnerRoleValues returns both spellings of the business-owner role for
// equality filters against documents that still carry the legacy value.
func OwnerRoleValues() []any {
	return []any{RoleOwnerBusiness, RoleOwnerBusinessLegacy}
}

// UserProfile is the document-side record of a Business Owner, Tenant, Staff
// or Customer, discriminated by Role and SubRole. The document id doubles as
// the profile id; PrincipalID references the identity-store account.
type UserProfile struct {
	ID                    string
	PrincipalID           string
	Username              string
	Email                 string
	Role                  string
	SubRole               string
	TenantID              string
	CreatedBy             string
	ContractEndDate       *time.Time
	PaymentStatus         string
	SubscriptionExpiresAt *time.Time
	IsActive              bool
	ManualTenantSelection bool
	SelectedTenantIDs     []string
	CreatedAt             time.Time
}

// UserProfileFromDocument decodes a users-collection document. Role
// normalization happens here so legacy values never leak past this boundary.
func UserProfileFromDocument(doc store.Document) UserProfile {
	return UserProfile{
		ID:                    doc.ID,
		PrincipalID:           doc.String("user_id"),
		Username:              doc.String("username"),
		Email:                 doc.String("email"),
		Role:                  NormalizeRole(doc.String("role")),
		SubRole:               doc.String("sub_role"),
		TenantID:              doc.String("tenant_id"),
		CreatedBy:             doc.String("created_by"),
		ContractEndDate:       doc.Time("contract_end_date"),
		PaymentStatus:         doc.String("payment_status"),
		SubscriptionExpiresAt: doc.Time("subscription_expires_at"),
		IsActive:              doc.Bool("is_active"),
		ManualTenantSelection: doc.Bool("manual_tenant_selection"),
		SelectedTenantIDs:     doc.StringSlice("selected_tenant_ids"),
		CreatedAt:             doc.CreatedAt,
	}
}

// DisplayName prefers the username and falls back to the email, mirroring
// what run reports show for a profile.
func (p UserProfile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}
