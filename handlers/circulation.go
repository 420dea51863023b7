package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"library-api/models"
	"library-api/service"
)

var loanMessages = fieldMessages{
	"member_id": "Member ID must be a positive integer",
	"book_id":   "Book ID must be a positive integer",
}

type loanRequest struct {
	MemberID *int `json:"member_id" binding:"required,min=1"`
	BookID   *int `json:"book_id" binding:"required,min=1"`
}

type borrowResponse struct {
	TransactionID int                      `json:"transaction_id"`
	MemberID      int                      `json:"member_id"`
	BookID        int                      `json:"book_id"`
	BorrowedAt    time.Time                `json:"borrowed_at"`
	DueDate       time.Time                `json:"due_date"`
	Status        models.TransactionStatus `json:"status"`
}

type returnResponse struct {
	TransactionID int                      `json:"transaction_id"`
	MemberID      int                      `json:"member_id"`
	BookID        int                      `json:"book_id"`
	ReturnedAt    *time.Time               `json:"returned_at"`
	FineAmount    float64                  `json:"fine_amount"`
	Status        models.TransactionStatus `json:"status"`
}

type borrowedBook struct {
	TransactionID int       `json:"transaction_id"`
	MemberID      int       `json:"member_id"`
	MemberName    string    `json:"member_name"`
	BookID        int       `json:"book_id"`
	BookTitle     string    `json:"book_title"`
	BorrowedAt    time.Time `json:"borrowed_at"`
	DueDate       time.Time `json:"due_date"`
}

type overdueBook struct {
	borrowedBook
	DaysOverdue int `json:"days_overdue"`
}

type historyEntry struct {
	TransactionID int                      `json:"transaction_id"`
	BookID        int                      `json:"book_id"`
	BookTitle     string                   `json:"book_title"`
	BorrowedAt    time.Time                `json:"borrowed_at"`
	ReturnedAt    *time.Time               `json:"returned_at"`
	Status        models.TransactionStatus `json:"status"`
}

func toBorrowedBook(b service.BorrowedBook) borrowedBook {
	return borrowedBook{
		TransactionID: b.Transaction.TransactionID,
		MemberID:      b.Transaction.MemberID,
		MemberName:    b.MemberName,
		BookID:        b.Transaction.BookID,
		BookTitle:     b.BookTitle,
		BorrowedAt:    b.Transaction.BorrowedAt,
		DueDate:       b.Transaction.DueDate,
	}
}

// CirculationHandler serves borrowing and returning.
type CirculationHandler struct {
	lib  *service.Library
	errs errorResponder
}

// Borrow lends a book to a member.
func (h *CirculationHandler) Borrow(c *gin.Context) {
	var req loanRequest
	if !bindJSON(c, &req, loanMessages) {
		return
	}
	tx, err := h.lib.Borrow(c.Request.Context(), *req.MemberID, *req.BookID)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowResponse{
		TransactionID: tx.TransactionID,
		MemberID:      tx.MemberID,
		BookID:        tx.BookID,
		BorrowedAt:    tx.BorrowedAt,
		DueDate:       tx.DueDate,
		Status:        tx.Status,
	})
}

// Return closes a loan and reports the fine.
func (h *CirculationHandler) Return(c *gin.Context) {
	var req loanRequest
	if !bindJSON(c, &req, loanMessages) {
		return
	}
	tx, err := h.lib.Return(c.Request.Context(), *req.MemberID, *req.BookID)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, returnResponse{
		TransactionID: tx.TransactionID,
		MemberID:      tx.MemberID,
		BookID:        tx.BookID,
		ReturnedAt:    tx.ReturnedAt,
		FineAmount:    tx.FineAmount,
		Status:        tx.Status,
	})
}

// Borrowed lists active loans.
func (h *CirculationHandler) Borrowed(c *gin.Context) {
	books := lo.Map(h.lib.Borrowed(c.Request.Context()), func(b service.BorrowedBook, _ int) borrowedBook {
		return toBorrowedBook(b)
	})
	c.JSON(http.StatusOK, gin.H{"borrowed_books": books})
}

// Overdue lists active loans past their due date.
func (h *CirculationHandler) Overdue(c *gin.Context) {
	books := lo.Map(h.lib.Overdue(c.Request.Context()), func(b service.OverdueBook, _ int) overdueBook {
		return overdueBook{borrowedBook: toBorrowedBook(b.BorrowedBook), DaysOverdue: b.DaysOverdue}
	})
	c.JSON(http.StatusOK, gin.H{"overdue_books": books})
}

// History lists every loan of a member.
func (h *CirculationHandler) History(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	history, err := h.lib.History(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	entries := lo.Map(history.Entries, func(e service.HistoryEntry, _ int) historyEntry {
		return historyEntry{
			TransactionID: e.Transaction.TransactionID,
			BookID:        e.Transaction.BookID,
			BookTitle:     e.BookTitle,
			BorrowedAt:    e.Transaction.BorrowedAt,
			ReturnedAt:    e.Transaction.ReturnedAt,
			Status:        e.Transaction.Status,
		}
	})
	c.JSON(http.StatusOK, gin.H{
		"member_id":         history.Member.MemberID,
		"member_name":       history.Member.Name,
		"borrowing_history": entries,
	})
}
