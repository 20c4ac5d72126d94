// model/subscription.go
package model

import "time"

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "FREE"
	TierMonthly SubscriptionTier = "MONTHLY"
	TierAnnual  SubscriptionTier = "ANNUAL"
)

// UnlimitedBooks marks a tier limit with no cap.
const UnlimitedBooks = -1

// TierInfo is the per-tier business table: borrow limits and price.
type TierInfo struct {
	DisplayName   string  `json:"display_name"`
	PhysicalLimit int     `json:"physical_limit"`
	DigitalLimit  int     `json:"digital_limit"`
	Price         float64 `json:"price"`
}

// Tiers is the closed set of subscription plans. Keep it read-only:
// every quota decision in the lending engine keys off these rows.
var Tiers = map[SubscriptionTier]TierInfo{
	TierFree:    {DisplayName: "Free", PhysicalLimit: 0, DigitalLimit: 10, Price: 0.0},
	TierMonthly: {DisplayName: "Monthly", PhysicalLimit: 10, DigitalLimit: UnlimitedBooks, Price: 9.99},
	TierAnnual:  {DisplayName: "Annual", PhysicalLimit: 20, DigitalLimit: UnlimitedBooks, Price: 99.99},
}

func IsValidTier(t string) bool {
	_, ok := Tiers[SubscriptionTier(t)]
	return ok
}

type Subscription struct {
	ID                    int64            `json:"id"`
	UserID                int64            `json:"user_id"`
	Tier                  SubscriptionTier `json:"tier"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               *time.Time       `json:"end_date,omitempty"`
	IsActive              bool             `json:"is_active"`
	AutoRenew             bool             `json:"auto_renew"`
	PhysicalBooksBorrowed int              `json:"physical_books_borrowed"`
	DigitalBooksBorrowed  int              `json:"digital_books_borrowed"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// IsExpired reports whether the subscription's paid period has lapsed.
// A nil EndDate (FREE tier) never expires.
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.EndDate != nil && now.After(*s.EndDate)
}

// EndDateFor computes the period end for a tier starting at start.
// FREE has no period end.
func EndDateFor(tier SubscriptionTier, start time.Time) *time.Time {
	switch tier {
	case TierMonthly:
		end := start.AddDate(0, 1, 0)
		return &end
	case TierAnnual:
		end := start.AddDate(1, 0, 0)
		return &end
	default:
		return nil
	}
}

// CanBorrowPhysical applies the tier gate: active, unexpired, and under
// the physical limit.
func (s *Subscription) CanBorrowPhysical(now time.Time) bool {
	if !s.IsActive || s.IsExpired(now) {
		return false
	}
	return s.PhysicalBooksBorrowed < Tiers[s.Tier].PhysicalLimit
}

// CanBorrowDigital is the same gate with the unlimited sentinel honored.
func (s *Subscription) CanBorrowDigital(now time.Time) bool {
	if !s.IsActive || s.IsExpired(now) {
		return false
	}
	limit := Tiers[s.Tier].DigitalLimit
	return limit == UnlimitedBooks || s.DigitalBooksBorrowed < limit
}
