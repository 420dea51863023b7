package models

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultCategory = "General"
	DefaultLanguage = "en"

	maxTitleChars      = 200
	maxAuthorChars     = 100
	maxPages           = 10000
	maxRating          = 5
	maxPopularityScore = 10
)

// Book represents a title in the catalog and its circulation counters.
type Book struct {
	BookID           int       `json:"book_id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	ISBN             string    `json:"isbn"`
	IsAvailable      bool      `json:"is_available"`
	Category         string    `json:"category"`
	PublishedDate    string    `json:"published_date,omitempty"`
	Rating           float64   `json:"rating"`
	Pages            int       `json:"pages"`
	BorrowingCount   int       `json:"borrowing_count"`
	PopularityScore  float64   `json:"popularity_score"`
	ReservationCount int       `json:"reservation_count"`
	Description      string    `json:"description"`
	Language         string    `json:"language"`
	CreatedAt        time.Time `json:"created_at"`
}

// BookPatch carries the allow-listed fields of a partial book update.
type BookPatch struct {
	Title            *string
	Author           *string
	ISBN             *string
	IsAvailable      *bool
	Category         *string
	PublishedDate    *string
	Rating           *float64
	BorrowingCount   *int
	PopularityScore  *float64
	ReservationCount *int
	Description      *string
	Pages            *int
	Language         *string
}

// NewBook builds an available book with the catalog defaults.
func NewBook(title, author string) Book {
	return Book{
		Title:       title,
		Author:      author,
		IsAvailable: true,
		Category:    DefaultCategory,
		Language:    DefaultLanguage,
	}
}

// Validate reports every violated book rule.
func (b Book) Validate() error {
	var v validation
	v.failIf(strings.TrimSpace(b.Title) == "", "Title is required")
	v.failIf(utf8.RuneCountInString(b.Title) > maxTitleChars, "Title must be 200 characters or less")
	v.failIf(strings.TrimSpace(b.Author) == "", "Author is required")
	v.failIf(utf8.RuneCountInString(b.Author) > maxAuthorChars, "Author must be 100 characters or less")
	v.failIf(b.ISBN != "" && !ValidISBN(b.ISBN), "Invalid ISBN format")
	v.failIf(b.BookID < 0, "Book ID must be a positive integer")
	v.failIf(b.Rating < 0 || b.Rating > maxRating, "Rating must be between 0 and 5")
	v.failIf(b.Pages < 0 || b.Pages > maxPages, "Pages must be between 0 and 10000")
	if b.PublishedDate != "" {
		_, err := ParseDate(b.PublishedDate)
		v.failIf(err != nil, "Invalid published date")
	}
	return v.result()
}

// PublishedAt returns the parsed publication date, if one is set and valid.
func (b Book) PublishedAt() (time.Time, bool) {
	if b.PublishedDate == "" {
		return time.Time{}, false
	}
	t, err := ParseDate(b.PublishedDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Apply copies the non-nil patch fields onto the book.
func (b *Book) Apply(p BookPatch) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.IsAvailable != nil {
		b.IsAvailable = *p.IsAvailable
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.PublishedDate != nil {
		b.PublishedDate = *p.PublishedDate
	}
	if p.Rating != nil {
		b.Rating = *p.Rating
	}
	if p.BorrowingCount != nil {
		b.BorrowingCount = *p.BorrowingCount
	}
	if p.PopularityScore != nil {
		b.PopularityScore = *p.PopularityScore
	}
	if p.ReservationCount != nil {
		b.ReservationCount = *p.ReservationCount
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Pages != nil {
		b.Pages = *p.Pages
	}
	if p.Language != nil {
		b.Language = *p.Language
	}
}

// Catalog keeps the descriptive fields and drops the counters and
// availability that circulation maintains.
func (p BookPatch) Catalog() BookPatch {
	p.IsAvailable = nil
	p.BorrowingCount = nil
	p.PopularityScore = nil
	p.ReservationCount = nil
	return p
}

// IncrementBorrowingCount records one more loan and refreshes the popularity score.
func (b *Book) IncrementBorrowingCount(now time.Time) {
	b.BorrowingCount++
	b.UpdatePopularityScore(now)
}

// IncrementReservationCount records one more reservation and refreshes the popularity score.
func (b *Book) IncrementReservationCount(now time.Time) {
	b.ReservationCount++
	b.UpdatePopularityScore(now)
}

// UpdatePopularityScore recomputes the 0-10 popularity score from loans,
// rating, catalog age and reservations.
func (b *Book) UpdatePopularityScore(now time.Time) {
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	ageDays := math.Max(1, now.Sub(created).Hours()/24)

	score := math.Log(float64(b.BorrowingCount)+1) * 2
	score += b.Rating * 0.5
	score += math.Max(0, (365-ageDays)/365) * 0.5
	score += math.Log(float64(b.ReservationCount)+1) * 0.3

	b.PopularityScore = math.Min(score, maxPopularityScore)
}
