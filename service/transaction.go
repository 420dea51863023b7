package service

import (
	"time"

	"github.com/samber/lo"

	"library-api/models"
	"library-api/store"
)

// TransactionService owns loan records.
type TransactionService struct {
	repo   store.Repository[int, models.Transaction]
	nextID int
}

// NewTransactionService returns a TransactionService backed by repo.
func NewTransactionService(repo store.Repository[int, models.Transaction]) *TransactionService {
	return &TransactionService{repo: repo, nextID: 1}
}

// Get returns the transaction with id.
func (s *TransactionService) Get(id int) (models.Transaction, bool) {
	return s.repo.Get(id)
}

func (s *TransactionService) List() []models.Transaction {
	return s.repo.List()
}

// Active returns the loans that have not been returned.
func (s *TransactionService) Active() []models.Transaction {
	return lo.Filter(s.repo.List(), func(t models.Transaction, _ int) bool {
		return t.IsActive()
	})
}

// Overdue returns the active loans past their due date at now.
func (s *TransactionService) Overdue(now time.Time) []models.Transaction {
	return lo.Filter(s.repo.List(), func(t models.Transaction, _ int) bool {
		return t.IsOverdue(now)
	})
}

// History lists every loan of the member, oldest first.
func (s *TransactionService) History(memberID int) []models.Transaction {
	return lo.Filter(s.repo.List(), func(t models.Transaction, _ int) bool {
		return t.MemberID == memberID
	})
}

// ByBook returns every loan of a book.
func (s *TransactionService) ByBook(bookID int) []models.Transaction {
	return lo.Filter(s.repo.List(), func(t models.Transaction, _ int) bool {
		return t.BookID == bookID
	})
}

// HasActiveBorrow reports whether the member has an open loan.
func (s *TransactionService) HasActiveBorrow(memberID int) bool {
	return lo.ContainsBy(s.repo.List(), func(t models.Transaction) bool {
		return t.IsActive() && t.MemberID == memberID
	})
}

// IsBookCurrentlyBorrowed reports whether the book has an open loan.
func (s *TransactionService) IsBookCurrentlyBorrowed(bookID int) bool {
	_, ok := s.ActiveForBook(bookID)
	return ok
}

// ActiveForBook returns the open loan of a book, if any.
func (s *TransactionService) ActiveForBook(bookID int) (models.Transaction, bool) {
	return lo.Find(s.repo.List(), func(t models.Transaction) bool {
		return t.IsActive() && t.BookID == bookID
	})
}

func (s *TransactionService) prepareBorrow(memberID, bookID int, now time.Time, loanPeriodDays int) (models.Transaction, error) {
	if s.HasActiveBorrow(memberID) {
		return models.Transaction{}, conflictf("member with id: %d has already borrowed a book", memberID)
	}
	if s.IsBookCurrentlyBorrowed(bookID) {
		return models.Transaction{}, conflictf("book with id: %d is currently borrowed", bookID)
	}
	tx := models.NewTransaction(memberID, bookID, now, loanPeriodDays)
	if err := tx.Validate(); err != nil {
		return models.Transaction{}, invalid(err)
	}
	return tx, nil
}

func (s *TransactionService) prepareReturn(memberID, bookID int, now time.Time, fineRate float64) (models.Transaction, error) {
	tx, ok := lo.Find(s.repo.List(), func(t models.Transaction) bool {
		return t.IsActive() && t.MemberID == memberID && t.BookID == bookID
	})
	if !ok {
		return models.Transaction{}, conflictf("member with id: %d has not borrowed book with id: %d", memberID, bookID)
	}
	fine := tx.Fine(now, fineRate)
	tx.Return(now)
	tx.FineAmount = fine
	return tx, nil
}

// save stores tx, assigning the next id to new transactions.
func (s *TransactionService) save(tx models.Transaction) models.Transaction {
	if tx.TransactionID == 0 {
		tx.TransactionID = s.nextID
		s.nextID++
	}
	s.repo.Put(tx.TransactionID, tx)
	return tx
}

// Borrow opens a loan. A member holds at most one active loan and a book has at
// most one borrower.
func (s *TransactionService) Borrow(memberID, bookID int, now time.Time, loanPeriodDays int) (models.Transaction, error) {
	tx, err := s.prepareBorrow(memberID, bookID, now, loanPeriodDays)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.save(tx), nil
}

// Return closes the member's active loan of the book and records the fine.
func (s *TransactionService) Return(memberID, bookID int, now time.Time, fineRate float64) (models.Transaction, error) {
	tx, err := s.prepareReturn(memberID, bookID, now, fineRate)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.save(tx), nil
}
