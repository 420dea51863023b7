package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"library-api/log"
	"library-api/models"
	"library-api/notify"
)

const unknownName = "Unknown"

const pickupWindow = 2 * 24 * time.Hour

// Borrow lends a book to a member. The loan, the member flag and the book
// counters are committed together or not at all.
func (l *Library) Borrow(ctx context.Context, memberID, bookID int) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.members.Exists(memberID) {
		return models.Transaction{}, notFound("member", memberID)
	}
	book, ok := l.books.Get(bookID)
	if !ok {
		return models.Transaction{}, notFound("book", bookID)
	}

	tx, err := l.transactions.prepareBorrow(memberID, bookID, now, l.policy.LoanPeriodDays)
	if err != nil {
		return models.Transaction{}, err
	}
	hold, held := l.reservations.Hold(bookID)
	if held && hold.MemberID != memberID {
		return models.Transaction{}, conflictf("book with id: %d is reserved by another member", bookID)
	}

	var uow unitOfWork
	uow.prepare(nil, func() { tx = l.transactions.save(tx) })

	member, err := l.members.stage(memberID, models.MemberPatch{HasBorrowed: lo.ToPtr(true)})
	uow.prepare(err, func() { l.members.save(member) })

	book.IsAvailable = false
	book.IncrementBorrowingCount(now)
	uow.prepare(book.Validate(), func() { l.books.save(book) })

	if held {
		uow.prepare(hold.Fulfill(), func() { l.reservations.save(hold) })
	}

	if err := uow.commit(); err != nil {
		if KindOf(err) == KindInternal {
			return models.Transaction{}, invalid(err)
		}
		return models.Transaction{}, err
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"transaction_id": tx.TransactionID,
		"member_id":      memberID,
		"book_id":        bookID,
		"due_date":       tx.DueDate,
	}).Info("book borrowed")
	return tx, nil
}

// Return closes the member's loan of the book, records any fine and hands the
// book to the head of its reservation queue.
func (l *Library) Return(ctx context.Context, memberID, bookID int) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tx, err := l.transactions.prepareReturn(memberID, bookID, now, l.policy.FineRatePerDay)
	if err != nil {
		return models.Transaction{}, err
	}

	var uow unitOfWork
	uow.prepare(nil, func() { tx = l.transactions.save(tx) })
	if l.members.Exists(memberID) {
		member, err := l.members.stage(memberID, models.MemberPatch{HasBorrowed: lo.ToPtr(false)})
		uow.prepare(err, func() { l.members.save(member) })
	}
	if l.books.Exists(bookID) {
		book, err := l.books.stage(bookID, models.BookPatch{IsAvailable: lo.ToPtr(true)})
		uow.prepare(err, func() { l.books.save(book) })
	}
	if err := uow.commit(); err != nil {
		return models.Transaction{}, err
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"transaction_id": tx.TransactionID,
		"member_id":      memberID,
		"book_id":        bookID,
		"fine_amount":    tx.FineAmount,
	}).Info("book returned")

	l.promoteNext(ctx, bookID, now)
	return tx, nil
}

// promoteNext confirms the head of the book's queue when the book is free and
// not held, then renumbers the queue. Queued reservations already past their
// expiry are expired instead of promoted. The promoted hold lasts at least
// until its pickup window closes.
func (l *Library) promoteNext(ctx context.Context, bookID int, now time.Time) (models.Reservation, bool) {
	defer l.reservations.Reindex(bookID)

	book, ok := l.books.Get(bookID)
	if !ok || !book.IsAvailable || l.transactions.IsBookCurrentlyBorrowed(bookID) {
		return models.Reservation{}, false
	}
	if _, held := l.reservations.Hold(bookID); held {
		return models.Reservation{}, false
	}
	next, ok := l.queueHead(ctx, bookID, now)
	if !ok {
		return models.Reservation{}, false
	}
	if err := next.Confirm(); err != nil {
		log.GetLogger(ctx).WithError(err).WithField("reservation_id", next.ReservationID).
			Error("queue head could not be confirmed")
		return models.Reservation{}, false
	}
	start := now
	if next.PreferredPickupDate != nil && next.PreferredPickupDate.After(now) {
		start = *next.PreferredPickupDate
	}
	end := start.Add(pickupWindow)
	next.EstimatedAvailabilityDate = &now
	next.PickupWindowStart = &start
	next.PickupWindowEnd = &end
	if next.ExpiresAt.Before(end) {
		next.ExpiresAt = end
	}
	l.reservations.save(next)

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"reservation_id": next.ReservationID,
		"member_id":      next.MemberID,
		"book_id":        bookID,
	}).Info("reservation promoted from queue")

	l.schedule(ctx, notify.Notification{
		MemberID:      next.MemberID,
		ReservationID: next.ReservationID,
		Kind:          notify.KindReservationConfirmed,
		ScheduledFor:  now,
		Channels:      next.NotificationPreferences.Channels(),
	})
	return next, true
}

// queueHead returns the first queued reservation of the book that has not
// expired, expiring the stale ones ahead of it.
func (l *Library) queueHead(ctx context.Context, bookID int, now time.Time) (models.Reservation, bool) {
	for _, r := range l.reservations.Queue(bookID) {
		if !r.IsExpired(now) {
			return r, true
		}
		if err := r.Expire(); err != nil {
			continue
		}
		l.reservations.save(r)
		log.GetLogger(ctx).WithFields(logrus.Fields{
			"reservation_id": r.ReservationID,
			"member_id":      r.MemberID,
			"book_id":        bookID,
		}).Info("queued reservation expired before promotion")
	}
	return models.Reservation{}, false
}

// BorrowedBook is an active loan joined with member and book names.
type BorrowedBook struct {
	Transaction models.Transaction
	MemberName  string
	BookTitle   string
}

// OverdueBook is a BorrowedBook past its due date.
type OverdueBook struct {
	BorrowedBook
	DaysOverdue int
}

// HistoryEntry is one loan in a member's borrowing history.
type HistoryEntry struct {
	Transaction models.Transaction
	BookTitle   string
}

// BorrowingHistory is a member with their loans.
type BorrowingHistory struct {
	Member  models.Member
	Entries []HistoryEntry
}

func (l *Library) memberName(id int) string {
	if m, ok := l.members.Get(id); ok {
		return m.Name
	}
	return unknownName
}

func (l *Library) bookTitle(id int) string {
	if b, ok := l.books.Get(id); ok {
		return b.Title
	}
	return unknownName
}

func (l *Library) borrowed(t models.Transaction) BorrowedBook {
	return BorrowedBook{
		Transaction: t,
		MemberName:  l.memberName(t.MemberID),
		BookTitle:   l.bookTitle(t.BookID),
	}
}

// Borrowed lists every active loan.
func (l *Library) Borrowed(ctx context.Context) []BorrowedBook {
	l.mu.Lock()
	defer l.mu.Unlock()

	return lo.Map(l.transactions.Active(), func(t models.Transaction, _ int) BorrowedBook {
		return l.borrowed(t)
	})
}

// Overdue lists active loans past their due date.
func (l *Library) Overdue(ctx context.Context) []OverdueBook {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return lo.Map(l.transactions.Overdue(now), func(t models.Transaction, _ int) OverdueBook {
		return OverdueBook{BorrowedBook: l.borrowed(t), DaysOverdue: t.DaysOverdue(now)}
	})
}

// History lists all loans of a member.
func (l *Library) History(ctx context.Context, memberID int) (BorrowingHistory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members.Get(memberID)
	if !ok {
		return BorrowingHistory{}, notFound("member", memberID)
	}
	entries := lo.Map(l.transactions.History(memberID), func(t models.Transaction, _ int) HistoryEntry {
		return HistoryEntry{Transaction: t, BookTitle: l.bookTitle(t.BookID)}
	})
	return BorrowingHistory{Member: member, Entries: entries}, nil
}
