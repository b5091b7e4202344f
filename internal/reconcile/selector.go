package reconcile

import (
	"context"
	"time"

	"kantin-reconciler/internal/domain"
	"kantin-reconciler/internal/store"
)

// Collections names the document-store collections the engine touches.
type Collections struct {
	Users           string
	Tenants         string
	Products        string
	Orders          string
	InvitationCodes string
}

// DefaultCollections matches the production collection ids.
func DefaultCollections() Collections {
	return Collections{
		Users:           "users",
		Tenants:         "tenants",
		Products:        "products",
		Orders:          "orders",
		InvitationCodes: "invitation_codes",
	}
}

// Selector builds and executes the candidate queries of each reconciliation
// task. It is the only place filter predicates are assembled, so the legacy
// role-value expansion lives here and in domain, nowhere else.
type Selector struct {
	docs       store.DocumentStore
	cols       Collections
	queryLimit int
}

func NewSelector(docs store.DocumentStore, cols Collections, queryLimit int) *Selector {
	return &Selector{docs: docs, cols: cols, queryLimit: queryLimit}
}

// ExpiredContracts returns profiles whose contract ended before now.
// Only the hard role exclusions are applied here; deletion eligibility is
// the grace gate's call.
func (s *Selector) ExpiredContracts(ctx context.Context, now time.Time) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.LessThan("contract_end_date", now.UTC().Format(time.RFC3339)),
		store.NotEqual("role", domain.RoleAdminSystem),
		store.NotEqual("role", domain.RoleGuest),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// ActiveOrders returns a tenant's in-flight orders (the deletion guard).
func (s *Selector) ActiveOrders(ctx context.Context, tenantID string) ([]domain.Order, error) {
	docs, err := s.docs.List(ctx, s.cols.Orders, []store.Filter{
		store.Equal("tenant_id", tenantID),
		store.Equal("status", domain.ActiveOrderStatuses()...),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.OrderFromDocument(d))
	}
	return out, nil
}

// TenantMembers returns all user profiles attached to a tenant, optionally
// excluding the root profile being cascaded.
func (s *Selector) TenantMembers(ctx context.Context, tenantID, excludeProfileID string) ([]domain.UserProfile, error) {
	filters := []store.Filter{store.Equal("tenant_id", tenantID)}
	if excludeProfileID != "" {
		filters = append(filters, store.NotEqual("$id", excludeProfileID))
	}
	docs, err := s.docs.List(ctx, s.cols.Users, filters)
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// TenantProducts returns every product of a tenant.
func (s *Selector) TenantProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	docs, err := s.docs.List(ctx, s.cols.Products, []store.Filter{
		store.Equal("tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.ProductFromDocument(d))
	}
	return out, nil
}

// TenantOrders returns every order of a tenant, regardless of status.
func (s *Selector) TenantOrders(ctx context.Context, tenantID string) ([]domain.Order, error) {
	docs, err := s.docs.List(ctx, s.cols.Orders, []store.Filter{
		store.Equal("tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.OrderFromDocument(d))
	}
	return out, nil
}

// OwnedTenantProfiles returns the tenant profiles a business owner created.
func (s *Selector) OwnedTenantProfiles(ctx context.Context, ownerPrincipalID string) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.Equal("role", domain.RoleTenant),
		store.Equal("created_by", ownerPrincipalID),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// StaleInvitationCodes returns active codes created before the cutoff.
func (s *Selector) StaleInvitationCodes(ctx context.Context, cutoff time.Time) ([]domain.InvitationCode, error) {
	docs, err := s.docs.List(ctx, s.cols.InvitationCodes, []store.Filter{
		store.Equal("status", domain.InvitationActive),
		store.LessThan("$createdAt", cutoff.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.InvitationCode, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.InvitationCodeFromDocument(d))
	}
	return out, nil
}

// ExpiredTrials returns trial profiles whose subscription lapsed.
func (s *Selector) ExpiredTrials(ctx context.Context, now time.Time) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.Equal("payment_status", domain.PaymentTrial),
		store.LessThan("subscription_expires_at", now.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// FreeTierOwners returns business owners subject to free-tier quotas.
func (s *Selector) FreeTierOwners(ctx context.Context) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.Equal("payment_status", domain.PaymentFree, domain.PaymentExpired),
		store.Equal("role", domain.OwnerRoleValues()...),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// OwnerTenantRecords returns the tenant records owned by a business owner
// profile (owner_id join).
func (s *Selector) OwnerTenantRecords(ctx context.Context, ownerProfileID string) ([]domain.TenantRecord, error) {
	docs, err := s.docs.List(ctx, s.cols.Tenants, []store.Filter{
		store.Equal("owner_id", ownerProfileID),
	})
	if err != nil {
		return nil, err
	}
	return decodeTenantRecords(docs), nil
}

// UserTenantRecords returns the tenant records correlated to a profile via
// user_id (the join trial auto-selection uses).
func (s *Selector) UserTenantRecords(ctx context.Context, profileID string) ([]domain.TenantRecord, error) {
	docs, err := s.docs.List(ctx, s.cols.Tenants, []store.Filter{
		store.Equal("user_id", profileID),
	})
	if err != nil {
		return nil, err
	}
	return decodeTenantRecords(docs), nil
}

// AvailableProducts returns a tenant's user-visible products, capped at the
// safety query limit.
func (s *Selector) AvailableProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	docs, err := s.docs.List(ctx, s.cols.Products, []store.Filter{
		store.Equal("tenant_id", tenantID),
		store.Equal("is_available", true),
		store.Limit(s.queryLimit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.ProductFromDocument(d))
	}
	return out, nil
}

// ActiveStaff returns a tenant's active staff profiles.
func (s *Selector) ActiveStaff(ctx context.Context, tenantID string) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.Equal("tenant_id", tenantID),
		store.Equal("sub_role", domain.SubRoleStaff),
		store.Equal("is_active", true),
		store.Limit(s.queryLimit),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

// ActiveTenantUsers returns a tenant's active non-staff tenant users.
// The sub_role predicate accepts both "never set" and "set to empty" since
// older records used either shape.
func (s *Selector) ActiveTenantUsers(ctx context.Context, tenantID string) ([]domain.UserProfile, error) {
	docs, err := s.docs.List(ctx, s.cols.Users, []store.Filter{
		store.Equal("tenant_id", tenantID),
		store.Equal("role", domain.RoleTenant),
		store.Or(
			store.IsNull("sub_role"),
			store.Equal("sub_role", ""),
		),
		store.Equal("is_active", true),
		store.Limit(s.queryLimit),
	})
	if err != nil {
		return nil, err
	}
	return decodeProfiles(docs), nil
}

func decodeProfiles(docs []store.Document) []domain.UserProfile {
	out := make([]domain.UserProfile, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.UserProfileFromDocument(d))
	}
	return out
}

func decodeTenantRecords(docs []store.Document) []domain.TenantRecord {
	out := make([]domain.TenantRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.TenantRecordFromDocument(d))
	}
	return out
}
