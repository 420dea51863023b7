package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"library-api/models"
	"library-api/store"
)

// ReservationService owns reservations and the per-day id sequences.
type ReservationService struct {
	repo store.Repository[string, models.Reservation]
	seq  map[string]int
}

func NewReservationService(repo store.Repository[string, models.Reservation]) *ReservationService {
	return &ReservationService{repo: repo, seq: make(map[string]int)}
}

// nextID returns the first unused RES-YYYYMMDD-NNN id for day. It fails once
// the day's three-digit sequence is used up.
func (s *ReservationService) nextID(day time.Time) (string, error) {
	day = day.UTC()
	key := day.Format("20060102")
	for s.seq[key] < models.MaxDailyReservations {
		s.seq[key]++
		id := models.FormatReservationID(day, s.seq[key])
		if !s.repo.Has(id) {
			return id, nil
		}
	}
	return "", conflictf("no reservation ids left for %s, the daily limit is %d", key, models.MaxDailyReservations)
}

// Create validates r, assigns its id and stores it.
func (s *ReservationService) Create(r models.Reservation) (models.Reservation, error) {
	if err := r.Validate(); err != nil {
		return models.Reservation{}, invalid(err)
	}
	if r.ReservationID == "" {
		id, err := s.nextID(r.CreatedAt)
		if err != nil {
			return models.Reservation{}, err
		}
		r.ReservationID = id
	}
	s.repo.Put(r.ReservationID, r)
	return r, nil
}

// Get returns the reservation with id.
func (s *ReservationService) Get(id string) (models.Reservation, bool) {
	return s.repo.Get(id)
}

func (s *ReservationService) List() []models.Reservation {
	return s.repo.List()
}

func (s *ReservationService) save(r models.Reservation) {
	s.repo.Put(r.ReservationID, r)
}

// ByMember returns every reservation of a member.
func (s *ReservationService) ByMember(memberID int) []models.Reservation {
	return lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.MemberID == memberID
	})
}

func (s *ReservationService) ByBook(bookID int) []models.Reservation {
	return lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.BookID == bookID
	})
}

// Active returns the reservations that are still open.
func (s *ReservationService) Active() []models.Reservation {
	return lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.IsActive()
	})
}

// ActiveForMember lists the member's pending, confirmed and queued reservations.
func (s *ReservationService) ActiveForMember(memberID int) []models.Reservation {
	return lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.IsActive() && r.MemberID == memberID
	})
}

func (s *ReservationService) HasActiveReservation(memberID int) bool {
	return len(s.ActiveForMember(memberID)) > 0
}

// ActiveForMemberAndBook returns the member's active reservation of the book.
func (s *ReservationService) ActiveForMemberAndBook(memberID, bookID int) (models.Reservation, bool) {
	return lo.Find(s.repo.List(), func(r models.Reservation) bool {
		return r.IsActive() && r.MemberID == memberID && r.BookID == bookID
	})
}

// ActiveForBook lists the reservations still holding or waiting for the book.
func (s *ReservationService) ActiveForBook(bookID int) []models.Reservation {
	return lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.IsActive() && r.BookID == bookID
	})
}

// Hold returns the confirmed reservation holding the book, if any.
func (s *ReservationService) Hold(bookID int) (models.Reservation, bool) {
	return lo.Find(s.repo.List(), func(r models.Reservation) bool {
		return r.Status == models.ReservationConfirmed && r.BookID == bookID
	})
}

// Queue returns the queued reservations of a book in service order: highest
// priority first, then oldest, then lowest id.
func (s *ReservationService) Queue(bookID int) []models.Reservation {
	queue := lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.Status == models.ReservationQueued && r.BookID == bookID
	})
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ReservationID < b.ReservationID
	})
	return queue
}

// Reindex rewrites the 1-based queue positions of the book's queue and
// returns the queue.
func (s *ReservationService) Reindex(bookID int) []models.Reservation {
	queue := s.Queue(bookID)
	for i := range queue {
		if queue[i].QueuePosition != i+1 {
			queue[i].QueuePosition = i + 1
			s.save(queue[i])
		}
	}
	return queue
}

// Transition moves a stored reservation to status.
func (s *ReservationService) Transition(id string, to models.ReservationStatus) (models.Reservation, error) {
	r, ok := s.repo.Get(id)
	if !ok {
		return models.Reservation{}, notFound("reservation", id)
	}

	var err error
	switch to {
	case models.ReservationConfirmed:
		err = r.Confirm()
	case models.ReservationQueued:
		err = r.Queue(len(s.Queue(r.BookID)) + 1)
	case models.ReservationCancelled:
		err = r.Cancel()
	case models.ReservationExpired:
		err = r.Expire()
	case models.ReservationFulfilled:
		err = r.Fulfill()
	default:
		err = fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, to)
	}
	if err != nil {
		return models.Reservation{}, transitionConflict(r, to, err)
	}
	s.save(r)
	return r, nil
}

func transitionConflict(r models.Reservation, to models.ReservationStatus, err error) error {
	if !errors.Is(err, models.ErrInvalidTransition) {
		return err
	}
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("reservation with id: %s cannot move from %s to %s", r.ReservationID, r.Status, to),
		Field:   "reservation_status",
		Code:    "invalid_status_transition",
		Err:     err,
	}
}

// ExpireDue expires every active reservation past its expiry and returns them
// as they were before expiring.
func (s *ReservationService) ExpireDue(now time.Time) []models.Reservation {
	due := lo.Filter(s.repo.List(), func(r models.Reservation, _ int) bool {
		return r.IsExpired(now)
	})
	for _, r := range due {
		expired := r
		if err := expired.Expire(); err == nil {
			s.save(expired)
		}
	}
	return due
}
