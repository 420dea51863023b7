package models

import (
	"math"
	"time"
)

// TransactionStatus is the lifecycle state of a loan.
type TransactionStatus string

const (
	TransactionActive    TransactionStatus = "active"
	TransactionReturned  TransactionStatus = "returned"
	TransactionCancelled TransactionStatus = "cancelled"
)

const (
	DefaultLoanPeriodDays = 14
	DefaultFineRate       = 0.50
	MaxFine               = 50.0

	maxFineAmount = 1000
)

// Transaction represents one loan of a book to a member.
type Transaction struct {
	TransactionID int               `json:"transaction_id"`
	MemberID      int               `json:"member_id"`
	BookID        int               `json:"book_id"`
	Status        TransactionStatus `json:"status"`
	BorrowedAt    time.Time         `json:"borrowed_at"`
	DueDate       time.Time         `json:"due_date"`
	ReturnedAt    *time.Time        `json:"returned_at"`
	FineAmount    float64           `json:"fine_amount"`
	Notes         string            `json:"notes"`
}

// NewTransaction opens an active loan borrowed at borrowedAt.
func NewTransaction(memberID, bookID int, borrowedAt time.Time, loanPeriodDays int) Transaction {
	return Transaction{
		MemberID:   memberID,
		BookID:     bookID,
		Status:     TransactionActive,
		BorrowedAt: borrowedAt,
		DueDate:    DueDateFor(borrowedAt, loanPeriodDays),
	}
}

// DueDateFor is the end of a loan period starting at borrowedAt.
func DueDateFor(borrowedAt time.Time, loanPeriodDays int) time.Time {
	if loanPeriodDays <= 0 {
		loanPeriodDays = DefaultLoanPeriodDays
	}
	return borrowedAt.AddDate(0, 0, loanPeriodDays)
}

// Validate reports every violated transaction rule.
func (t Transaction) Validate() error {
	var v validation
	v.failIf(t.MemberID <= 0, "Valid member ID is required")
	v.failIf(t.BookID <= 0, "Valid book ID is required")
	switch t.Status {
	case TransactionActive, TransactionReturned, TransactionCancelled:
	default:
		v.fail("Status must be active, returned, or cancelled")
	}
	v.failIf(t.BorrowedAt.IsZero(), "Invalid borrowed_at date")
	v.failIf(t.DueDate.IsZero() || t.DueDate.Before(t.BorrowedAt), "Invalid due_date")
	v.failIf(t.ReturnedAt != nil && t.ReturnedAt.Before(t.BorrowedAt), "Invalid returned_at date")
	v.failIf(t.FineAmount < 0 || t.FineAmount > maxFineAmount, "Fine amount must be between 0 and 1000")
	return v.result()
}

// IsActive reports whether the book has not been returned yet.
func (t Transaction) IsActive() bool {
	return t.Status == TransactionActive
}

// IsOverdue reports whether an active loan is past its due date.
func (t Transaction) IsOverdue(now time.Time) bool {
	return t.IsActive() && now.After(t.DueDate)
}

// DaysOverdue counts started days past the due date.
func (t Transaction) DaysOverdue(now time.Time) int {
	if !t.IsOverdue(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(t.DueDate).Hours() / 24))
}

// Fine is the accrued overdue fine at ratePerDay, capped at MaxFine.
func (t Transaction) Fine(now time.Time, ratePerDay float64) float64 {
	if !t.IsOverdue(now) {
		return 0
	}
	return math.Min(float64(t.DaysOverdue(now))*ratePerDay, MaxFine)
}

// Return closes the loan at now.
func (t *Transaction) Return(now time.Time) {
	t.Status = TransactionReturned
	t.ReturnedAt = &now
}
