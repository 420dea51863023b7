// Package service implements the library rules on top of the repositories.
//
// The entity services own one repository each. Library coordinates them: it
// serializes every operation and stages compound mutations so that a failing
// step leaves all entities untouched.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"library-api/config"
	"library-api/log"
	"library-api/models"
	"library-api/notify"
	"library-api/store"
)

// Notifier schedules member notifications.
type Notifier interface {
	Schedule(ctx context.Context, n notify.Notification) (notify.Notification, error)
}

// Library is the single entry point for operations spanning members, books,
// loans and reservations.
type Library struct {
	mu           sync.Mutex
	members      *MemberService
	books        *BookService
	transactions *TransactionService
	reservations *ReservationService
	policy       config.Library
	notifier     Notifier
	now          func() time.Time
}

// Option configures a Library.
type Option func(*Library) error

// WithClock makes the library read the current time from now.
func WithClock(now func() time.Time) Option {
	return func(l *Library) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		l.now = now
		return nil
	}
}

// WithPolicy sets the circulation policy.
func WithPolicy(policy config.Library) Option {
	return func(l *Library) error {
		if policy.LoanPeriodDays <= 0 || policy.MaxActiveReservations <= 0 ||
			policy.DefaultMaxWaitDays <= 0 || policy.FineRatePerDay < 0 {
			return errors.New("invalid library policy")
		}
		l.policy = policy
		return nil
	}
}

// WithNotifier replaces the default in-memory notification gateway.
func WithNotifier(n Notifier) Option {
	return func(l *Library) error {
		if n == nil {
			return errors.New("notifier must not be nil")
		}
		l.notifier = n
		return nil
	}
}

// NewLibrary builds a library over empty in-memory repositories.
func NewLibrary(opts ...Option) (*Library, error) {
	l := &Library{
		members:      NewMemberService(store.NewMemory[int, models.Member]()),
		books:        NewBookService(store.NewMemory[int, models.Book]()),
		transactions: NewTransactionService(store.NewMemory[int, models.Transaction]()),
		reservations: NewReservationService(store.NewMemory[string, models.Reservation]()),
		policy:       config.Default().Library,
		notifier:     notify.NewScheduler(notify.NewMockClient()),
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Policy returns the circulation policy in effect.
func (l *Library) Policy() config.Library {
	return l.policy
}

// CreateMember stores a new member, assigning an id when m has none.
func (l *Library) CreateMember(ctx context.Context, m models.Member) (models.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	created, err := l.members.Create(m)
	if err != nil {
		return models.Member{}, err
	}
	log.GetLogger(ctx).WithField("member_id", created.MemberID).Info("member created")
	return created, nil
}

// GetMember returns the member with id.
func (l *Library) GetMember(ctx context.Context, id int) (models.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.members.Get(id)
	if !ok {
		return models.Member{}, notFound("member", id)
	}
	return m, nil
}

func (l *Library) ListMembers(ctx context.Context) []models.Member {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.List()
}

// UpdateMember applies patch and keeps the member unchanged when the result is invalid.
func (l *Library) UpdateMember(ctx context.Context, id int, patch models.MemberPatch) (models.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members.Update(id, patch)
}

// DeleteMember removes a member without an open loan and cancels the
// member's active reservations.
func (l *Library) DeleteMember(ctx context.Context, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.members.Get(id)
	if !ok {
		return notFound("member", id)
	}
	if m.HasBorrowed || l.transactions.HasActiveBorrow(id) {
		return conflictf("cannot delete member with id: %d, member has an active book borrowing", id)
	}

	var uow unitOfWork
	released := []int{}
	for _, r := range l.reservations.ActiveForMember(id) {
		if r.Status == models.ReservationConfirmed {
			released = append(released, r.BookID)
		}
		cancelled := r
		uow.prepare(cancelled.Cancel(), func() { l.reservations.save(cancelled) })
	}
	uow.prepare(nil, func() { l.members.Delete(id) })
	if err := uow.commit(); err != nil {
		return err
	}

	now := l.now()
	for _, bookID := range lo.Uniq(released) {
		l.promoteNext(ctx, bookID, now)
	}
	for _, r := range l.reservations.ByMember(id) {
		l.reservations.Reindex(r.BookID)
	}
	log.GetLogger(ctx).WithField("member_id", id).Info("member deleted")
	return nil
}

// CreateBook stores a new book, stamping its catalog date.
func (l *Library) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = l.now()
	}
	created, err := l.books.Create(b)
	if err != nil {
		return models.Book{}, err
	}
	log.GetLogger(ctx).WithFields(logrus.Fields{
		"book_id": created.BookID,
		"title":   created.Title,
	}).Info("book created")
	return created, nil
}

// GetBook returns the book with id.
func (l *Library) GetBook(ctx context.Context, id int) (models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.books.Get(id)
	if !ok {
		return models.Book{}, notFound("book", id)
	}
	return b, nil
}

func (l *Library) ListBooks(ctx context.Context) []models.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.books.List()
}

// UpdateBook changes catalog fields only. Availability and the counters move
// with borrowing and reservations.
func (l *Library) UpdateBook(ctx context.Context, id int, patch models.BookPatch) (models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.books.Update(id, patch.Catalog())
}

// DeleteBook removes a book that is neither borrowed nor reserved.
func (l *Library) DeleteBook(ctx context.Context, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.books.Exists(id) {
		return notFound("book", id)
	}
	if l.transactions.IsBookCurrentlyBorrowed(id) {
		return conflictf("cannot delete book with id: %d, book is currently borrowed", id)
	}
	if len(l.reservations.ActiveForBook(id)) > 0 {
		return conflictf("cannot delete book with id: %d, book has active reservations", id)
	}
	l.books.Delete(id)
	log.GetLogger(ctx).WithField("book_id", id).Info("book deleted")
	return nil
}

// Availability selects books by circulation state in a search.
type Availability string

const (
	AvailabilityAll       Availability = "all"
	AvailabilityAvailable Availability = "available"
	AvailabilityBorrowed  Availability = "borrowed"
	AvailabilityReserved  Availability = "reserved"
)

// SearchResult holds matching books in catalog order. Reserved marks the
// matches held by a confirmed reservation.
type SearchResult struct {
	Books    []models.Book
	Reserved map[int]bool
}

// SearchBooks runs a catalog search. The reserved availability keeps only
// available books held for a member.
func (l *Library) SearchBooks(ctx context.Context, query string, filters SearchFilters, availability Availability) SearchResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch availability {
	case AvailabilityAvailable, AvailabilityReserved:
		filters.Available = lo.ToPtr(true)
	case AvailabilityBorrowed:
		filters.Available = lo.ToPtr(false)
	}

	books := l.books.Search(query, filters)
	reserved := make(map[int]bool)
	for _, b := range books {
		if _, held := l.reservations.Hold(b.BookID); held {
			reserved[b.BookID] = true
		}
	}
	if availability == AvailabilityReserved {
		books = lo.Filter(books, func(b models.Book, _ int) bool {
			return reserved[b.BookID]
		})
	}
	return SearchResult{Books: books, Reserved: reserved}
}

// schedule sends n through the notifier. Gateway failures are logged and do
// not fail the calling operation.
func (l *Library) schedule(ctx context.Context, n notify.Notification) (notify.Notification, bool) {
	if len(n.Channels) == 0 {
		return n, false
	}
	scheduled, err := l.notifier.Schedule(ctx, n)
	if err != nil {
		log.GetLogger(ctx).WithError(err).WithFields(logrus.Fields{
			"member_id":      n.MemberID,
			"reservation_id": n.ReservationID,
			"type":           n.Kind,
		}).Warn("notification not scheduled")
		return n, false
	}
	return scheduled, true
}
