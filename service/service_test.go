package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-api/models"
	"library-api/service"
	"library-api/store"
)

func newMemberService() *service.MemberService {
	return service.NewMemberService(store.NewMemory[int, models.Member]())
}

func Test_MemberService_Create_Fails_WhenIDAlreadyExists(t *testing.T) {
	// arrange
	members := newMemberService()
	_, err := members.Create(models.NewMember(1, "Jane", 30))
	require.NoError(t, err)

	// act
	_, err = members.Create(models.NewMember(1, "John", 40))

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, "member with id: 1 already exists", err.Error())
	stored, _ := members.Get(1)
	assert.Equal(t, "Jane", stored.Name)
	assert.Len(t, members.List(), 1)
}

func Test_MemberService_Create_AssignsFreeIDs(t *testing.T) {
	members := newMemberService()
	_, err := members.Create(models.NewMember(2, "Two", 30))
	require.NoError(t, err)

	first, err := members.Create(models.NewMember(0, "Auto", 30))
	require.NoError(t, err)
	second, err := members.Create(models.NewMember(0, "Auto", 30))
	require.NoError(t, err)

	assert.Equal(t, 1, first.MemberID)
	assert.Equal(t, 3, second.MemberID)
}

func Test_MemberService_Create_Fails_WhenInvalid(t *testing.T) {
	members := newMemberService()

	_, err := members.Create(models.NewMember(0, "", 130))

	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, "Validation failed: Name is required, Age must be 120 or younger", err.Error())
	assert.Equal(t, []string{"Name is required", "Age must be 120 or younger"}, models.Messages(errors.Unwrap(err)))
	assert.Zero(t, len(members.List()))
}

func Test_MemberService_Update_LeavesMemberUntouched_WhenInvalid(t *testing.T) {
	// arrange
	members := newMemberService()
	_, err := members.Create(models.NewMember(1, "Jane", 30))
	require.NoError(t, err)
	name, age := "Janet", 5

	// act
	_, err = members.Update(1, models.MemberPatch{Name: &name, Age: &age})

	// assert
	assert.ErrorIs(t, err, service.ErrValidation)
	stored, _ := members.Get(1)
	assert.Equal(t, models.NewMember(1, "Jane", 30), stored)
}

func Test_MemberService_Update_Fails_WhenMissing(t *testing.T) {
	name := "Ghost"

	_, err := newMemberService().Update(9, models.MemberPatch{Name: &name})

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, "member with id: 9 was not found", err.Error())
}

func Test_BookService_Create_Fails_WhenIDAlreadyExists(t *testing.T) {
	books := service.NewBookService(store.NewMemory[int, models.Book]())
	b := models.NewBook("X", "Y")
	b.BookID = 4
	_, err := books.Create(b)
	require.NoError(t, err)

	_, err = books.Create(b)

	assert.EqualError(t, err, "book with id: 4 already exists")
	assert.Len(t, books.List(), 1)
}

func Test_BookService_Search(t *testing.T) {
	books := service.NewBookService(store.NewMemory[int, models.Book]())
	add := func(title, author, category, published string, rating float64, available bool) {
		b := models.NewBook(title, author)
		b.Category = category
		b.PublishedDate = published
		b.Rating = rating
		b.IsAvailable = available
		_, err := books.Create(b)
		require.NoError(t, err)
	}
	add("The Hobbit", "J.R.R. Tolkien", "Fantasy", "1937-09-21", 4.7, true)
	add("Dune", "Frank Herbert", "Sci-Fi", "1965-08-01", 4.5, false)
	add("Fantastic Beasts", "J.K. Rowling", "Fantasy", "", 3.9, true)

	titles := func(found []models.Book) []string {
		out := []string{}
		for _, b := range found {
			out = append(out, b.Title)
		}
		return out
	}
	after := time.Date(1937, 9, 21, 0, 0, 0, 0, time.UTC)
	before := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	minRating, maxRating := 4.5, 4.5
	available := true

	assert.Equal(t, []string{"The Hobbit", "Fantastic Beasts"}, titles(books.Search("fanta", service.SearchFilters{})))
	assert.Equal(t, []string{"Dune"}, titles(books.Search("HERBERT", service.SearchFilters{})))
	assert.Equal(t, []string{"The Hobbit", "Fantastic Beasts"}, titles(books.Search("", service.SearchFilters{Category: "Fantasy"})))
	assert.Empty(t, books.Search("", service.SearchFilters{Category: "fantasy"}))
	assert.Equal(t, []string{"Fantastic Beasts"}, titles(books.Search("", service.SearchFilters{Author: "rowling"})))
	assert.Equal(t, []string{"The Hobbit", "Fantastic Beasts"}, titles(books.Search("", service.SearchFilters{Available: &available})))
	assert.Equal(t, []string{"Dune"}, titles(books.Search("", service.SearchFilters{MinRating: &minRating, MaxRating: &maxRating})))
	assert.Equal(t, []string{"The Hobbit", "Dune"}, titles(books.Search("", service.SearchFilters{PublishedAfter: &after, PublishedBefore: &before})))
}

func Test_SearchFilters_Applied(t *testing.T) {
	rating := 3.0
	f := service.SearchFilters{Category: "Fantasy", MinRating: &rating}

	assert.Equal(t, []string{"category", "min_rating"}, f.Applied())
	assert.Equal(t, []string{}, service.SearchFilters{}.Applied())
}

func Test_TransactionService_BorrowAndReturn(t *testing.T) {
	// arrange
	txs := service.NewTransactionService(store.NewMemory[int, models.Transaction]())
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// act
	tx, err := txs.Borrow(1, 10, now, 14)
	require.NoError(t, err)
	_, errSecondBook := txs.Borrow(1, 11, now, 14)
	_, errSameBook := txs.Borrow(2, 10, now, 14)
	_, errWrongBook := txs.Return(1, 11, now, 0.5)
	returned, errReturn := txs.Return(1, 10, tx.DueDate.AddDate(0, 0, 3), 0.5)

	// assert
	assert.Equal(t, 1, tx.TransactionID)
	assert.Equal(t, now.AddDate(0, 0, 14), tx.DueDate)
	assert.EqualError(t, errSecondBook, "member with id: 1 has already borrowed a book")
	assert.EqualError(t, errSameBook, "book with id: 10 is currently borrowed")
	assert.EqualError(t, errWrongBook, "member with id: 1 has not borrowed book with id: 11")
	require.NoError(t, errReturn)
	assert.Equal(t, models.TransactionReturned, returned.Status)
	assert.Equal(t, 1.5, returned.FineAmount)
	assert.False(t, txs.HasActiveBorrow(1))
	assert.False(t, txs.IsBookCurrentlyBorrowed(10))
	assert.Len(t, txs.History(1), 1)
	assert.Len(t, txs.ByBook(10), 1)
	assert.Empty(t, txs.Active())
}

func Test_TransactionService_Overdue(t *testing.T) {
	txs := service.NewTransactionService(store.NewMemory[int, models.Transaction]())
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	_, err := txs.Borrow(1, 10, now, 14)
	require.NoError(t, err)
	_, err = txs.Borrow(2, 20, now.AddDate(0, 0, 10), 14)
	require.NoError(t, err)

	overdue := txs.Overdue(now.AddDate(0, 0, 15))

	require.Len(t, overdue, 1)
	assert.Equal(t, 10, overdue[0].BookID)
}

func queued(t *testing.T, reservations *service.ReservationService, memberID int, priority float64, created time.Time) models.Reservation {
	t.Helper()
	r := models.NewReservation(memberID, 7, created)
	r.Status = models.ReservationQueued
	r.PriorityScore = priority
	stored, err := reservations.Create(r)
	require.NoError(t, err)
	return stored
}

func Test_ReservationService_Queue_OrdersByPriorityThenAgeThenID(t *testing.T) {
	// arrange
	reservations := service.NewReservationService(store.NewMemory[string, models.Reservation]())
	day := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	late := queued(t, reservations, 1, 2.0, day.Add(2*time.Hour))
	early := queued(t, reservations, 2, 2.0, day.Add(time.Hour))
	top := queued(t, reservations, 3, 4.5, day.Add(3*time.Hour))
	tieA := queued(t, reservations, 4, 1.0, day)
	tieB := queued(t, reservations, 5, 1.0, day)

	// act
	queue := reservations.Reindex(7)

	// assert
	ids := []string{}
	for _, r := range queue {
		ids = append(ids, r.ReservationID)
	}
	assert.Equal(t, []string{top.ReservationID, early.ReservationID, late.ReservationID, tieA.ReservationID, tieB.ReservationID}, ids)
	for i, r := range queue {
		stored, _ := reservations.Get(r.ReservationID)
		assert.Equal(t, i+1, stored.QueuePosition)
	}
}

func Test_ReservationService_Create_AssignsUniqueDailyIDs(t *testing.T) {
	reservations := service.NewReservationService(store.NewMemory[string, models.Reservation]())
	day := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	taken := models.NewReservation(1, 1, day)
	taken.ReservationID = "RES-20240309-002"
	_, err := reservations.Create(taken)
	require.NoError(t, err)

	first, err := reservations.Create(models.NewReservation(2, 1, day))
	require.NoError(t, err)
	second, err := reservations.Create(models.NewReservation(3, 1, day.Add(time.Hour)))
	require.NoError(t, err)
	nextDay, err := reservations.Create(models.NewReservation(4, 1, day.AddDate(0, 0, 1)))
	require.NoError(t, err)

	assert.Equal(t, "RES-20240309-001", first.ReservationID)
	assert.Equal(t, "RES-20240309-003", second.ReservationID)
	assert.Equal(t, "RES-20240310-001", nextDay.ReservationID)
}

func Test_ReservationService_Create_Fails_WhenDailyIDsRunOut(t *testing.T) {
	reservations := service.NewReservationService(store.NewMemory[string, models.Reservation]())
	day := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	for i := 0; i < models.MaxDailyReservations; i++ {
		_, err := reservations.Create(models.NewReservation(i+1, 1, day))
		require.NoError(t, err)
	}

	_, err := reservations.Create(models.NewReservation(1000, 1, day))
	nextDay, nextErr := reservations.Create(models.NewReservation(1000, 1, day.AddDate(0, 0, 1)))

	assert.ErrorIs(t, err, service.ErrConflict)
	assert.EqualError(t, err, "no reservation ids left for 20240309, the daily limit is 999")
	require.NoError(t, nextErr)
	assert.Equal(t, "RES-20240310-001", nextDay.ReservationID)
}

func Test_ReservationService_Transition_Fails_WhenTerminal(t *testing.T) {
	reservations := service.NewReservationService(store.NewMemory[string, models.Reservation]())
	r, err := reservations.Create(models.NewReservation(1, 1, time.Now()))
	require.NoError(t, err)
	_, err = reservations.Transition(r.ReservationID, models.ReservationCancelled)
	require.NoError(t, err)

	_, err = reservations.Transition(r.ReservationID, models.ReservationConfirmed)

	assert.ErrorIs(t, err, service.ErrConflict)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = reservations.Transition("RES-19990101-001", models.ReservationCancelled)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func Test_ReservationService_ExpireDue(t *testing.T) {
	reservations := service.NewReservationService(store.NewMemory[string, models.Reservation]())
	created := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	short := models.NewReservation(1, 1, created)
	short.MaxWaitDays = 1
	short.ExpiresAt = short.ExpirationDate()
	short, err := reservations.Create(short)
	require.NoError(t, err)
	long, err := reservations.Create(models.NewReservation(2, 1, created))
	require.NoError(t, err)

	expired := reservations.ExpireDue(created.AddDate(0, 0, 2))

	require.Len(t, expired, 1)
	assert.Equal(t, short.ReservationID, expired[0].ReservationID)
	stored, _ := reservations.Get(short.ReservationID)
	assert.Equal(t, models.ReservationExpired, stored.Status)
	stored, _ = reservations.Get(long.ReservationID)
	assert.Equal(t, models.ReservationPending, stored.Status)
	assert.False(t, reservations.HasActiveReservation(1))
	assert.True(t, reservations.HasActiveReservation(2))
}

func Test_KindOf(t *testing.T) {
	assert.Equal(t, service.KindInternal, service.KindOf(errors.New("boom")))
	assert.Equal(t, service.KindNotFound, service.KindOf(&service.Error{Kind: service.KindNotFound}))
}
