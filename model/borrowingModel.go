// model/borrowing.go
package model

import "time"

const DefaultMaxRenewals = 2

type Borrowing struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	BookID          int64      `json:"book_id"`
	BorrowDate      time.Time  `json:"borrow_date"`
	DueDate         time.Time  `json:"due_date"`
	ReturnDate      *time.Time `json:"return_date,omitempty"`
	Fine            float64    `json:"fine"`
	IsReturned      bool       `json:"is_returned"`
	RenewalCount    int        `json:"renewal_count"`
	MaxRenewals     int        `json:"max_renewals"`
	LastRenewalDate *time.Time `json:"last_renewal_date,omitempty"`
}

// BookBorrowCount is one row of the most-borrowed report.
type BookBorrowCount struct {
	BookID      int64  `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	BorrowCount int    `json:"borrow_count"`
}

// CanRenew checks the renewal preconditions: still out, renewals left,
// and not more than one day past due.
func (b *Borrowing) CanRenew(today time.Time) bool {
	if b.IsReturned {
		return false
	}
	if b.RenewalCount >= b.MaxRenewals {
		return false
	}
	return !today.After(b.DueDate.AddDate(0, 0, 1))
}
