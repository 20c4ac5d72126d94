// model/book.go
package model

import "time"

type BookType string

const (
	BookPhysical BookType = "PHYSICAL"
	BookDigital  BookType = "DIGITAL"
)

const DefaultLoanPeriodDays = 14

type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Publisher       string    `json:"publisher,omitempty"`
	Category        string    `json:"category,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	BookType        BookType  `json:"book_type"`
	LoanPeriodDays  int       `json:"loan_period_days"`
	IsReference     bool      `json:"is_reference"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LoanDays falls back to the 14-day default when a book has no explicit
// loan period configured.
func (b *Book) LoanDays() int {
	if b.LoanPeriodDays > 0 {
		return b.LoanPeriodDays
	}
	return DefaultLoanPeriodDays
}

var ValidBookTypes = map[string]bool{
	string(BookPhysical): true,
	string(BookDigital):  true,
}

func IsValidBookType(t string) bool {
	return ValidBookTypes[t]
}
