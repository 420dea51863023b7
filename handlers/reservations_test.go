package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CreateReservation_Success_WhenBookIsFree(t *testing.T) {
	// arrange
	f := newFixture(t)
	member := f.member("Jane", 30)
	book := f.book(map[string]any{"title": "X", "author": "Y"})

	// act
	w := f.do(http.MethodPost, "/api/reservations", map[string]any{
		"member_id":        member,
		"book_id":          book,
		"special_requests": map[string]any{"academic_priority": false, "large_print": true},
	})

	// assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "RES-20240301-001", body["reservation_id"])
	assert.Equal(t, "X", body["book_title"])
	assert.Equal(t, "confirmed", body["reservation_status"])
	assert.InDelta(t, 1.45, body["priority_score"], 1e-9)
	details := body["reservation_details"].(map[string]any)
	assert.Equal(t, "2024-03-15T10:00:00Z", details["expires_at"])
	assert.Equal(t, "standard", details["reservation_type"])
	factors := body["member_priority_factors"].(map[string]any)
	assert.Equal(t, []any{"large_print"}, factors["special_circumstances"])
	notifications := body["notifications_scheduled"].([]any)
	require.Len(t, notifications, 1)
	assert.Equal(t, "availability_alert", notifications[0].(map[string]any)["type"])
	assert.Equal(t, "priority_score", body["conflict_resolution"].(map[string]any)["resolution_method"])
}

func Test_CreateReservation_Success_WhenBookIsOnLoan(t *testing.T) {
	// arrange
	f := newFixture(t)
	jane := f.member("Jane", 30)
	john := f.member("John", 40)
	book := f.book(map[string]any{"title": "X", "author": "Y"})
	f.do(http.MethodPost, "/api/borrow", map[string]any{"member_id": john, "book_id": book})

	// act
	w := f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": jane, "book_id": book, "max_wait_days": 20})

	// assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "queued", body["reservation_status"])
	assert.Equal(t, float64(1), body["queue_position"])
	assert.Equal(t, "2024-03-15T10:00:00Z", body["estimated_availability_date"])
	assert.Equal(t, float64(1), body["queue_analytics"].(map[string]any)["total_in_queue"])
	notifications := body["notifications_scheduled"].([]any)
	require.Len(t, notifications, 2)
	assert.Equal(t, "queue_position_update", notifications[0].(map[string]any)["type"])
}

func Test_CreateReservation_Fail_WhenRequestIsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{"missing member", map[string]any{"book_id": 1}, "Member ID must be a positive integer"},
		{"bad type", map[string]any{"member_id": 1, "book_id": 1, "reservation_type": "vip"}, "Reservation type must be standard, premium, or group"},
		{"bad pickup date", map[string]any{"member_id": 1, "book_id": 1, "preferred_pickup_date": "someday"}, "Preferred pickup date must be a valid ISO 8601 date"},
		{"long wait", map[string]any{"member_id": 1, "book_id": 1, "max_wait_days": 40}, "Max wait days must be between 1 and 30"},
		{"large fee", map[string]any{"member_id": 1, "book_id": 1, "fee_paid": 101}, "Fee paid must be between 0 and 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(http.MethodPost, "/api/reservations", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["message"])
		})
	}
}

func Test_CreateReservation_Fail_WhenAlreadyReserved(t *testing.T) {
	// arrange
	f := newFixture(t)
	member := f.member("Jane", 30)
	book := f.book(map[string]any{"title": "X", "author": "Y"})
	f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": member, "book_id": book})

	// act
	w := f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": member, "book_id": book})

	// assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"error": "reservation_conflict",
		"message": "Member already has an active reservation for this book",
		"details": {"validation_errors": [{
			"field": "member_id",
			"error": "member_has_active_reservation",
			"details": "Member already has an active reservation for this book"
		}]}
	}`, w.Body.String())
}

func Test_CreateReservation_Fail_WhenMemberIsBorrowingBook(t *testing.T) {
	f := newFixture(t)
	member := f.member("Jane", 30)
	book := f.book(map[string]any{"title": "X", "author": "Y"})
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/borrow", map[string]any{"member_id": member, "book_id": book}).Code)

	w := f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": member, "book_id": book})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"error": "reservation_conflict",
		"message": "Member is currently borrowing this book",
		"details": {"validation_errors": [{
			"field": "member_id",
			"error": "member_is_borrowing_book",
			"details": "Transaction 1 is still active for book 1"
		}]}
	}`, w.Body.String())
}

func Test_CreateReservation_Fail_WhenGroupIsInvalid(t *testing.T) {
	f := newFixture(t)
	member := f.member("Jane", 30)
	book := f.book(map[string]any{"title": "X", "author": "Y"})

	w := f.do(http.MethodPost, "/api/reservations", map[string]any{
		"member_id":         member,
		"book_id":           book,
		"reservation_type":  "group",
		"group_reservation": map[string]any{"group_id": "G1", "group_size": 1, "coordinator_member_id": member},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "reservation_conflict", body["error"])
	assert.Equal(t, "Multiple complex validation failures detected", body["message"])
	details := body["details"].(map[string]any)
	errs := details["validation_errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "Validation failed: Invalid group reservation data", errs[0].(map[string]any)["details"])
	assert.Equal(t, float64(1), details["queue_impact"].(map[string]any)["queue_position_if_accepted"])
}

func Test_CreateReservation_Fail_WhenMemberIsUnknown(t *testing.T) {
	f := newFixture(t)
	book := f.book(map[string]any{"title": "X", "author": "Y"})

	w := f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": 9, "book_id": book})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "member with id: 9 was not found", decode(t, w)["message"])
}

func Test_CancelReservation_Success_PromotesQueue(t *testing.T) {
	// arrange
	f := newFixture(t)
	jane := f.member("Jane", 30)
	john := f.member("John", 40)
	book := f.book(map[string]any{"title": "X", "author": "Y"})
	first := decode(t, f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": jane, "book_id": book}))
	second := decode(t, f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": john, "book_id": book}))
	require.Equal(t, "queued", second["reservation_status"])

	// act
	w := f.do(http.MethodDelete, "/api/reservations/"+first["reservation_id"].(string), nil)

	// assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "reservation with id: RES-20240301-001 has been cancelled successfully", body["message"])
	assert.Equal(t, "cancelled", body["reservation"].(map[string]any)["status"])

	promoted := decode(t, f.do(http.MethodGet, "/api/reservations/"+second["reservation_id"].(string), nil))
	assert.Equal(t, "confirmed", promoted["status"])
	queue := decode(t, f.do(http.MethodGet, "/api/books/1/queue", nil))
	assert.Equal(t, []any{}, queue["queue"])
}

func Test_MemberReservations_Success(t *testing.T) {
	f := newFixture(t)
	member := f.member("Jane", 30)
	book := f.book(map[string]any{"title": "X", "author": "Y"})
	f.do(http.MethodPost, "/api/reservations", map[string]any{"member_id": member, "book_id": book})

	w := f.do(http.MethodGet, "/api/members/1/reservations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["member_id"])
	reservations := body["reservations"].([]any)
	require.Len(t, reservations, 1)
	assert.Equal(t, "RES-20240301-001", reservations[0].(map[string]any)["reservation_id"])
}

func Test_GetReservation_Fail_WhenUnknown(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/reservations/RES-20240301-999", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "reservation with id: RES-20240301-999 was not found", decode(t, w)["message"])
}
