package domain

import (
	"time"

	"kantin-reconciler/internal/store"
)

// TenantRecord is the business-facing tenant metadata ("tenants" collection),
// distinct from the tenant's user profile.
type TenantRecord struct {
	ID                  string
	Name                string
	OwnerID             string // business owner profile id
	UserID              string
	TenantID            string
	SelectedForFreeTier bool
	IsActive            bool
	CreatedAt           time.Time
}

func TenantRecordFromDocument(doc store.Document) TenantRecord {
	return TenantRecord{
		ID:                  doc.ID,
		Name:                doc.String("name"),
		OwnerID:             doc.String("owner_id"),
		UserID:              doc.String("user_id"),
		TenantID:            doc.String("tenant_id"),
		SelectedForFreeTier: doc.Bool("selected_for_free_tier"),
		IsActive:            doc.Bool("is_active"),
		CreatedAt:           doc.CreatedAt,
	}
}

// Product ("products" collection). IsAvailable is the only availability flag
// quota eviction flips.
type Product struct {
	ID          string
	TenantID    string
	Name        string
	IsAvailable bool
}

func ProductFromDocument(doc store.Document) Product {
	return Product{
		ID:          doc.ID,
		TenantID:    doc.String("tenant_id"),
		Name:        doc.String("name"),
		IsAvailable: doc.Bool("is_available"),
	}
}

// Order statuses that block deletion of their tenant.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPreparing = "preparing"
)

// ActiveOrderStatuses lists statuses counting as in-flight transactions,
// shaped for equality filters.
func ActiveOrderStatuses() []any {
	return []any{OrderPending, OrderConfirmed, OrderPreparing}
}

type Order struct {
	ID       string
	TenantID string
	Status   string
}

func OrderFromDocument(doc store.Document) Order {
	return Order{
		ID:       doc.ID,
		TenantID: doc.String("tenant_id"),
		Status:   doc.String("status"),
	}
}

// Invitation code statuses.
const (
	InvitationActive  = "active"
	InvitationExpired = "expired"
)

type InvitationCode struct {
	ID        string
	Code      string
	Status    string
	CreatedAt time.Time
}

func InvitationCodeFromDocument(doc store.Document) InvitationCode {
	return InvitationCode{
		ID:        doc.ID,
		Code:      doc.String("code"),
		Status:    doc.String("status"),
		CreatedAt: doc.CreatedAt,
	}
}
