package handlers_test

import (
	"net/http"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(f *fixture) {
	f.book(map[string]any{"title": "The Hobbit", "author": "J.R.R. Tolkien", "category": "Fantasy", "rating": 4.7, "published_date": "1937-09-21"})
	f.book(map[string]any{"title": "dune", "author": "Frank Herbert", "category": "Sci-Fi", "rating": 4.3, "published_date": "1965-08-01"})
	f.book(map[string]any{"title": "Silmarillion", "author": "J.R.R. Tolkien", "category": "Fantasy", "rating": 3.9, "published_date": "1977-09-15"})
	f.book(map[string]any{"title": "Neuromancer", "author": "William Gibson", "category": "Sci-Fi", "rating": 4.0})
}

func titles(t *testing.T, body map[string]any) []string {
	t.Helper()
	books, ok := body["books"].([]any)
	require.True(t, ok)
	return lo.Map(books, func(b any, _ int) string { return b.(map[string]any)["title"].(string) })
}

func Test_SearchBooks_Success_WhenFilteringAndSorting(t *testing.T) {
	// arrange
	f := newFixture(t)
	seedCatalog(f)

	// act
	w := f.do(http.MethodGet, "/api/books/search?author=tolkien&sort_by=rating&sort_order=asc", nil)

	// assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, []string{"Silmarillion", "The Hobbit"}, titles(t, body))
	assert.Equal(t, map[string]any{
		"current_page":  float64(1),
		"total_pages":   float64(1),
		"total_results": float64(2),
		"has_next":      false,
		"has_previous":  false,
	}, body["pagination"])
}

func Test_SearchBooks_Success_WhenSortingTitlesIgnoringCase(t *testing.T) {
	f := newFixture(t)
	seedCatalog(f)

	w := f.do(http.MethodGet, "/api/books/search?sort_by=title", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"dune", "Neuromancer", "Silmarillion", "The Hobbit"}, titles(t, decode(t, w)))
}

func Test_SearchBooks_Success_WhenPaginating(t *testing.T) {
	f := newFixture(t)
	seedCatalog(f)

	w := f.do(http.MethodGet, "/api/books/search?limit=3&page=2", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []string{"Neuromancer"}, titles(t, body))
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Equal(t, false, pagination["has_next"])
	assert.Equal(t, true, pagination["has_previous"])
}

func Test_SearchBooks_Success_WhenPageIsPastTheEnd(t *testing.T) {
	f := newFixture(t)
	f.book(map[string]any{"title": "Dune", "author": "Frank Herbert"})

	w := f.do(http.MethodGet, "/api/books/search?page=9223372036854775807", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Empty(t, titles(t, body))
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["total_pages"])
	assert.Equal(t, false, pagination["has_next"])
	assert.Equal(t, true, pagination["has_previous"])
}

func Test_SearchBooks_Success_WhenFilteringByDateRange(t *testing.T) {
	f := newFixture(t)
	seedCatalog(f)

	w := f.do(http.MethodGet, "/api/books/search?published_after=1950-01-01&published_before=1980-01-01&sort_by=published_date", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"dune", "Silmarillion"}, titles(t, decode(t, w)))
}

func Test_SearchBooks_Success_WhenAnalyticsRequested(t *testing.T) {
	// arrange
	f := newFixture(t)
	seedCatalog(f)
	member := f.member("Jane", 30)
	f.do(http.MethodPost, "/api/borrow", map[string]any{"member_id": member, "book_id": 2})

	// act
	w := f.do(http.MethodGet, "/api/books/search?category=Sci-Fi&include_analytics=true&member_preferences=true&borrowing_trends=true", nil)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	analytics := body["analytics"].(map[string]any)
	assert.Equal(t, []any{"category"}, analytics["filters_applied"])
	assert.Equal(t, map[string]any{"available": float64(1), "borrowed": float64(1), "reserved": float64(0)}, analytics["availability_summary"])
	assert.Contains(t, body, "suggestions")
	trends := body["borrowing_trends"].(map[string]any)
	top := trends["most_borrowed"].([]any)
	require.NotEmpty(t, top)
	assert.Equal(t, "dune", top[0].(map[string]any)["title"])
}

func Test_SearchBooks_Success_WhenFilteringReserved(t *testing.T) {
	// arrange
	f := newFixture(t)
	seedCatalog(f)
	member := f.member("Jane", 30)
	w := f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": member, "book_id": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// act
	w = f.do(http.MethodGet, "/api/books/search?availability=reserved", nil)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []string{"Silmarillion"}, titles(t, body))
	assert.Equal(t, true, body["books"].([]any)[0].(map[string]any)["is_reserved"])
}

func Test_SearchBooks_Fail_WhenDateRangeIsInverted(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/books/search?published_after=2023-01-01&published_before=2020-01-01", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "invalid_query_parameters", body["error"])
	assert.Equal(t, "Invalid date range: published_after cannot be later than published_before", body["message"])
	details := body["details"].(map[string]any)
	assert.Equal(t, []any{"published_after", "published_before"}, details["invalid_params"])
}

func Test_SearchBooks_Fail_WhenParameterIsInvalid(t *testing.T) {
	tests := []struct {
		query   string
		param   string
		message string
	}{
		{"min_rating=7", "min_rating", "Min rating must be between 0 and 5"},
		{"max_rating=abc", "max_rating", "Max rating must be between 0 and 5"},
		{"availability=lost", "availability", "Availability must be available, borrowed, reserved, or all"},
		{"sort_by=pages", "sort_by", "Sort by must be title, author, published_date, rating, popularity, or relevance"},
		{"sort_order=up", "sort_order", "Sort order must be asc or desc"},
		{"page=0", "page", "Page must be a positive integer"},
		{"limit=101", "limit", "Limit must be between 1 and 100"},
		{"include_analytics=maybe", "include_analytics", "Include analytics must be a boolean"},
		{"published_after=soon", "published_after", "Published after date must be a valid ISO 8601 date"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(http.MethodGet, "/api/books/search?"+tt.query, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, "invalid_query_parameters", body["error"])
			assert.Equal(t, tt.message, body["message"])
			assert.Equal(t, []any{tt.param}, body["details"].(map[string]any)["invalid_params"])
		})
	}
}
