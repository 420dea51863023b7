package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"library-api/log"
	"library-api/models"
	"library-api/notify"
)

const (
	codeActiveReservation = "member_has_active_reservation"
	codeBorrowingBook     = "member_is_borrowing_book"

	unknownWait = 7 * 24 * time.Hour
)

// ReservationRequest carries the client-supplied reservation fields. Zero
// values fall back to the reservation defaults.
type ReservationRequest struct {
	MemberID                int
	BookID                  int
	ReservationType         models.ReservationType
	PreferredPickupDate     *time.Time
	MaxWaitDays             int
	FeePaid                 float64
	NotificationPreferences *models.NotificationPreferences
	GroupReservation        *models.GroupReservation
	SpecialRequests         models.SpecialRequests
	PaymentInfo             models.PaymentInfo
}

// ReservationResult is a stored reservation with the records it was decided on.
type ReservationResult struct {
	Reservation   models.Reservation
	Book          models.Book
	QueueLength   int
	Notifications []notify.Notification
}

func reservationConflict(code, message, detail string) error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
		Field:   "member_id",
		Code:    code,
		Detail:  detail,
	}
}

// Reserve places a reservation. The member gets the book on hold when it is
// free, otherwise a place in its queue.
func (l *Library) Reserve(ctx context.Context, req ReservationRequest) (ReservationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.expireDue(ctx, now)

	member, ok := l.members.Get(req.MemberID)
	if !ok {
		return ReservationResult{}, notFound("member", req.MemberID)
	}
	book, ok := l.books.Get(req.BookID)
	if !ok {
		return ReservationResult{}, notFound("book", req.BookID)
	}

	if _, exists := l.reservations.ActiveForMemberAndBook(req.MemberID, req.BookID); exists {
		msg := "Member already has an active reservation for this book"
		return ReservationResult{}, reservationConflict(codeActiveReservation, msg, msg)
	}
	if loan, borrowed := l.transactions.ActiveForBook(req.BookID); borrowed && loan.MemberID == req.MemberID {
		return ReservationResult{}, reservationConflict(
			codeBorrowingBook,
			"Member is currently borrowing this book",
			fmt.Sprintf("Transaction %d is still active for book %d", loan.TransactionID, req.BookID),
		)
	}
	if active := len(l.reservations.ActiveForMember(req.MemberID)); active >= l.policy.MaxActiveReservations {
		return ReservationResult{}, reservationConflict(
			codeActiveReservation,
			"Member has reached maximum active reservations limit",
			fmt.Sprintf("Member already has %d active reservations (limit: %d)", active, l.policy.MaxActiveReservations),
		)
	}

	r := l.newReservation(req, now)
	if err := r.Validate(); err != nil {
		return ReservationResult{}, invalid(err)
	}
	r.CalculatePriorityScore(&member)

	_, held := l.reservations.Hold(req.BookID)
	free := book.IsAvailable && !held && !l.transactions.IsBookCurrentlyBorrowed(req.BookID)
	var err error
	if free {
		err = r.Confirm()
	} else {
		err = r.Queue(len(l.reservations.Queue(req.BookID)) + 1)
	}
	if err != nil {
		return ReservationResult{}, invalid(err)
	}

	id, err := l.reservations.nextID(now)
	if err != nil {
		return ReservationResult{}, err
	}
	r.ReservationID = id
	book.IncrementReservationCount(now)

	var uow unitOfWork
	uow.prepare(nil, func() { l.reservations.save(r) })
	uow.prepare(nil, func() { l.books.save(book) })
	if err := uow.commit(); err != nil {
		return ReservationResult{}, err
	}

	queue := l.reservations.Reindex(req.BookID)
	if stored, ok := l.reservations.Get(r.ReservationID); ok {
		r = stored
	}
	l.estimate(&r, now)
	l.reservations.save(r)

	result := ReservationResult{
		Reservation:   r,
		Book:          book,
		QueueLength:   len(queue),
		Notifications: l.scheduleReservation(ctx, r, now),
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"reservation_id": r.ReservationID,
		"member_id":      r.MemberID,
		"book_id":        r.BookID,
		"status":         r.Status,
		"queue_position": r.QueuePosition,
		"priority_score": r.PriorityScore,
	}).Info("reservation created")
	return result, nil
}

func (l *Library) newReservation(req ReservationRequest, now time.Time) models.Reservation {
	r := models.NewReservation(req.MemberID, req.BookID, now)
	if req.ReservationType != "" {
		r.ReservationType = req.ReservationType
	}
	r.MaxWaitDays = l.policy.DefaultMaxWaitDays
	if req.MaxWaitDays != 0 {
		r.MaxWaitDays = req.MaxWaitDays
	}
	r.ExpiresAt = r.ExpirationDate()
	r.PreferredPickupDate = req.PreferredPickupDate
	r.FeePaid = req.FeePaid
	if req.NotificationPreferences != nil {
		r.NotificationPreferences = *req.NotificationPreferences
	}
	r.GroupReservation = req.GroupReservation
	r.SpecialRequests = req.SpecialRequests
	r.PaymentInfo = req.PaymentInfo
	return r
}

// estimate sets the expected availability and pickup window of r. A queued
// reservation waits for the current loan plus one loan period per member
// ahead of it.
func (l *Library) estimate(r *models.Reservation, now time.Time) {
	available := now
	if r.Status == models.ReservationQueued {
		if loan, ok := l.transactions.ActiveForBook(r.BookID); ok {
			available = loan.DueDate
		} else {
			available = now.Add(unknownWait)
		}
		if r.QueuePosition > 1 {
			available = available.AddDate(0, 0, (r.QueuePosition-1)*l.policy.LoanPeriodDays)
		}
	}

	start := available
	if r.PreferredPickupDate != nil {
		start = *r.PreferredPickupDate
	}
	end := start.Add(pickupWindow)
	r.EstimatedAvailabilityDate = &available
	r.PickupWindowStart = &start
	r.PickupWindowEnd = &end
}

func (l *Library) scheduleReservation(ctx context.Context, r models.Reservation, now time.Time) []notify.Notification {
	channels := r.NotificationPreferences.Channels()
	var pending []notify.Notification
	if r.Status == models.ReservationQueued {
		pending = append(pending, notify.Notification{
			MemberID:      r.MemberID,
			ReservationID: r.ReservationID,
			Kind:          notify.KindQueuePositionUpdate,
			ScheduledFor:  now.Add(24 * time.Hour),
			Channels:      channels,
		})
	}
	pending = append(pending, notify.Notification{
		MemberID:      r.MemberID,
		ReservationID: r.ReservationID,
		Kind:          notify.KindAvailabilityAlert,
		ScheduledFor:  *r.EstimatedAvailabilityDate,
		Channels:      channels,
	})

	scheduled := []notify.Notification{}
	for _, n := range pending {
		if sent, ok := l.schedule(ctx, n); ok {
			scheduled = append(scheduled, sent)
		}
	}
	return scheduled
}

// GetReservation returns the reservation with id.
func (l *Library) GetReservation(ctx context.Context, id string) (models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.reservations.Get(id)
	if !ok {
		return models.Reservation{}, notFound("reservation", id)
	}
	return r, nil
}

// MemberReservations lists every reservation of a member.
func (l *Library) MemberReservations(ctx context.Context, memberID int) ([]models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.members.Exists(memberID) {
		return nil, notFound("member", memberID)
	}
	return l.reservations.ByMember(memberID), nil
}

// Queue returns the waiting reservations of a book in service order.
func (l *Library) Queue(ctx context.Context, bookID int) ([]models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.books.Exists(bookID) {
		return nil, notFound("book", bookID)
	}
	return l.reservations.Queue(bookID), nil
}

// CancelReservation cancels an active reservation. Releasing a hold passes the
// book to the next member in line.
func (l *Library) CancelReservation(ctx context.Context, id string) (models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before, ok := l.reservations.Get(id)
	if !ok {
		return models.Reservation{}, notFound("reservation", id)
	}
	cancelled, err := l.reservations.Transition(id, models.ReservationCancelled)
	if err != nil {
		return models.Reservation{}, err
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"reservation_id": id,
		"member_id":      cancelled.MemberID,
		"book_id":        cancelled.BookID,
	}).Info("reservation cancelled")

	if before.Status == models.ReservationConfirmed {
		l.promoteNext(ctx, cancelled.BookID, l.now())
	} else {
		l.reservations.Reindex(cancelled.BookID)
	}
	return cancelled, nil
}

// ExpireReservations expires every reservation past its expiry date and
// returns how many were expired.
func (l *Library) ExpireReservations(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expireDue(ctx, l.now())
}

func (l *Library) expireDue(ctx context.Context, now time.Time) int {
	expired := l.reservations.ExpireDue(now)
	if len(expired) == 0 {
		return 0
	}

	books := lo.Uniq(lo.Map(expired, func(r models.Reservation, _ int) int { return r.BookID }))
	for _, bookID := range books {
		l.promoteNext(ctx, bookID, now)
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"expired": len(expired),
		"books":   books,
	}).Info("reservations expired")
	return len(expired)
}
