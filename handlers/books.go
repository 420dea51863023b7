package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"library-api/models"
	"library-api/service"
)

var bookMessages = fieldMessages{
	"book_id":           "Book ID must be a positive integer",
	"title":             "Title is required",
	"title.max":         "Title must be between 1 and 200 characters",
	"author":            "Author is required",
	"author.max":        "Author must be between 1 and 100 characters",
	"isbn":              "ISBN must be between 10 and 17 characters",
	"is_available":      "Is available must be a boolean",
	"category":          "Category must be between 1 and 50 characters",
	"published_date":    "Published date must be a valid ISO 8601 date",
	"rating":            "Rating must be between 0 and 5",
	"pages":             "Pages must be between 0 and 10000",
	"borrowing_count":   "Borrowing count must be a non-negative integer",
	"popularity_score":  "Popularity score must be between 0 and 10",
	"reservation_count": "Reservation count must be a non-negative integer",
	"description":       "Description must be a string",
	"language":          "Language must be a string",
}

// CatalogFields are the descriptive book fields a client may change at any
// time.
type CatalogFields struct {
	ISBN          *string  `json:"isbn" binding:"omitempty,min=10,max=17"`
	Category      *string  `json:"category" binding:"omitempty,notblank,max=50"`
	PublishedDate *string  `json:"published_date" binding:"omitempty,isodate"`
	Rating        *float64 `json:"rating" binding:"omitempty,min=0,max=5"`
	Pages         *int     `json:"pages" binding:"omitempty,min=0,max=10000"`
	Description   *string  `json:"description"`
	Language      *string  `json:"language"`
}

func (f CatalogFields) patch() models.BookPatch {
	return models.BookPatch{
		ISBN:          f.ISBN,
		Category:      trimmed(f.Category),
		PublishedDate: f.PublishedDate,
		Rating:        f.Rating,
		Description:   f.Description,
		Pages:         f.Pages,
		Language:      f.Language,
	}
}

// BookFields add the circulation state a new book may be seeded with.
type BookFields struct {
	CatalogFields
	IsAvailable      *bool    `json:"is_available"`
	BorrowingCount   *int     `json:"borrowing_count" binding:"omitempty,min=0"`
	PopularityScore  *float64 `json:"popularity_score" binding:"omitempty,min=0,max=10"`
	ReservationCount *int     `json:"reservation_count" binding:"omitempty,min=0"`
}

func (f BookFields) patch() models.BookPatch {
	p := f.CatalogFields.patch()
	p.IsAvailable = f.IsAvailable
	p.BorrowingCount = f.BorrowingCount
	p.PopularityScore = f.PopularityScore
	p.ReservationCount = f.ReservationCount
	return p
}

type createBookRequest struct {
	BookID *int   `json:"book_id" binding:"omitempty,min=1"`
	Title  string `json:"title" binding:"notblank,max=200"`
	Author string `json:"author" binding:"notblank,max=100"`
	BookFields
}

// updateBookRequest ignores availability and the counters.
type updateBookRequest struct {
	Title  *string `json:"title" binding:"omitempty,notblank,max=200"`
	Author *string `json:"author" binding:"omitempty,notblank,max=100"`
	CatalogFields
}

type bookResponse struct {
	BookID      int    `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	IsAvailable bool   `json:"is_available"`
}

type bookSummary struct {
	BookID      int     `json:"book_id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        string  `json:"isbn"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
	IsAvailable bool    `json:"is_available"`
}

func toBookResponse(b models.Book) bookResponse {
	return bookResponse{BookID: b.BookID, Title: b.Title, Author: b.Author, ISBN: b.ISBN, IsAvailable: b.IsAvailable}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// BookHandler serves the catalog and book search.
type BookHandler struct {
	lib  *service.Library
	errs errorResponder
}

// Create adds a book and answers with its short form.
func (h *BookHandler) Create(c *gin.Context) {
	var req createBookRequest
	if !bindJSON(c, &req, bookMessages) {
		return
	}

	b := models.NewBook(strings.TrimSpace(req.Title), strings.TrimSpace(req.Author))
	if req.BookID != nil {
		b.BookID = *req.BookID
	}
	b.Apply(req.patch())

	b, err := h.lib.CreateBook(c.Request.Context(), b)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookResponse(b))
}

// Get returns one book in short form.
func (h *BookHandler) Get(c *gin.Context) {
	id, ok := bookIDParam(c)
	if !ok {
		return
	}
	b, err := h.lib.GetBook(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookResponse(b))
}

// List returns the catalog in summary form.
func (h *BookHandler) List(c *gin.Context) {
	books := h.lib.ListBooks(c.Request.Context())
	out := make([]bookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, bookSummary{
			BookID:      b.BookID,
			Title:       b.Title,
			Author:      b.Author,
			ISBN:        b.ISBN,
			Category:    b.Category,
			Rating:      b.Rating,
			IsAvailable: b.IsAvailable,
		})
	}
	c.JSON(http.StatusOK, gin.H{"books": out})
}

// Update applies a partial change and answers with the full book.
func (h *BookHandler) Update(c *gin.Context) {
	id, ok := bookIDParam(c)
	if !ok {
		return
	}
	var req updateBookRequest
	if !bindJSON(c, &req, bookMessages) {
		return
	}

	patch := req.patch()
	patch.Title = trimmed(req.Title)
	patch.Author = trimmed(req.Author)
	b, err := h.lib.UpdateBook(c.Request.Context(), id, patch)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Delete removes a book that is neither borrowed nor reserved.
func (h *BookHandler) Delete(c *gin.Context) {
	id, ok := bookIDParam(c)
	if !ok {
		return
	}
	if err := h.lib.DeleteBook(c.Request.Context(), id); err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("book with id: %d has been deleted successfully", id)})
}
