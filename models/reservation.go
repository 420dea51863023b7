package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ReservationType selects the reservation tier.
type ReservationType string

const (
	ReservationStandard ReservationType = "standard"
	ReservationPremium  ReservationType = "premium"
	ReservationGroup    ReservationType = "group"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationQueued    ReservationStatus = "queued"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

const (
	DefaultMaxWaitDays = 14

	minMaxWaitDays = 1
	maxMaxWaitDays = 30
	maxFeePaid     = 100
	minGroupSize   = 2
	maxGroupSize   = 10
)

// ErrInvalidTransition is returned when a reservation cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid reservation status transition")

var typeWeights = map[ReservationType]float64{
	ReservationStandard: 1,
	ReservationPremium:  2,
	ReservationGroup:    1.5,
}

var transitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationQueued, ReservationCancelled, ReservationExpired},
	ReservationQueued:    {ReservationConfirmed, ReservationCancelled, ReservationExpired},
	ReservationConfirmed: {ReservationCancelled, ReservationExpired, ReservationFulfilled},
}

// NotificationPreferences selects the channels a member is notified on.
type NotificationPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Channels lists the enabled channel names.
func (p NotificationPreferences) Channels() []string {
	var channels []string
	if p.Email {
		channels = append(channels, "email")
	}
	if p.SMS {
		channels = append(channels, "sms")
	}
	if p.Push {
		channels = append(channels, "push")
	}
	return channels
}

// GroupReservation describes a reservation made on behalf of a group.
type GroupReservation struct {
	GroupID             string `json:"group_id"`
	GroupSize           int    `json:"group_size"`
	CoordinatorMemberID int    `json:"coordinator_member_id"`
}

func (g GroupReservation) valid() bool {
	return strings.TrimSpace(g.GroupID) != "" &&
		g.GroupSize >= minGroupSize && g.GroupSize <= maxGroupSize &&
		g.CoordinatorMemberID > 0
}

// SpecialRequests are member circumstances that raise reservation priority.
type SpecialRequests struct {
	AcademicPriority   bool   `json:"academic_priority,omitempty"`
	AccessibilityNeeds bool   `json:"accessibility_needs,omitempty"`
	LargePrint         bool   `json:"large_print,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// Circumstances names the requests that are switched on.
func (s SpecialRequests) Circumstances() []string {
	circumstances := []string{}
	if s.AcademicPriority {
		circumstances = append(circumstances, "academic_priority")
	}
	if s.AccessibilityNeeds {
		circumstances = append(circumstances, "accessibility_needs")
	}
	if s.LargePrint {
		circumstances = append(circumstances, "large_print")
	}
	return circumstances
}

// PaymentInfo records how a reservation fee was paid.
type PaymentInfo struct {
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Reservation represents a member's hold or queue place for a book.
type Reservation struct {
	ReservationID             string                  `json:"reservation_id"`
	MemberID                  int                     `json:"member_id"`
	BookID                    int                     `json:"book_id"`
	ReservationType           ReservationType         `json:"reservation_type"`
	Status                    ReservationStatus       `json:"status"`
	CreatedAt                 time.Time               `json:"created_at"`
	ExpiresAt                 time.Time               `json:"expires_at"`
	PreferredPickupDate       *time.Time              `json:"preferred_pickup_date"`
	MaxWaitDays               int                     `json:"max_wait_days"`
	QueuePosition             int                     `json:"queue_position"`
	PriorityScore             float64                 `json:"priority_score"`
	EstimatedAvailabilityDate *time.Time              `json:"estimated_availability_date"`
	PickupWindowStart         *time.Time              `json:"pickup_window_start"`
	PickupWindowEnd           *time.Time              `json:"pickup_window_end"`
	FeePaid                   float64                 `json:"fee_paid"`
	NotificationPreferences   NotificationPreferences `json:"notification_preferences"`
	GroupReservation          *GroupReservation       `json:"group_reservation"`
	SpecialRequests           SpecialRequests         `json:"special_requests"`
	PaymentInfo               PaymentInfo             `json:"payment_info"`
}

// NewReservation builds a pending standard reservation created at createdAt.
func NewReservation(memberID, bookID int, createdAt time.Time) Reservation {
	r := Reservation{
		MemberID:        memberID,
		BookID:          bookID,
		ReservationType: ReservationStandard,
		Status:          ReservationPending,
		CreatedAt:       createdAt,
		MaxWaitDays:     DefaultMaxWaitDays,
		NotificationPreferences: NotificationPreferences{
			Email: true,
			Push:  true,
		},
	}
	r.ExpiresAt = r.ExpirationDate()
	return r
}

// MaxDailyReservations is the largest sequence a reservation id can carry.
const MaxDailyReservations = 999

// FormatReservationID renders the RES-YYYYMMDD-NNN identifier for the seq-th
// reservation of day.
func FormatReservationID(day time.Time, seq int) string {
	return fmt.Sprintf("RES-%s-%03d", day.Format("20060102"), seq)
}

// ExpirationDate is created_at plus the member's maximum wait.
func (r Reservation) ExpirationDate() time.Time {
	days := r.MaxWaitDays
	if days <= 0 {
		days = DefaultMaxWaitDays
	}
	return r.CreatedAt.AddDate(0, 0, days)
}

// Validate reports every violated reservation rule.
func (r Reservation) Validate() error {
	var v validation
	v.failIf(r.MemberID <= 0, "Valid member ID is required")
	v.failIf(r.BookID <= 0, "Valid book ID is required")
	if _, ok := typeWeights[r.ReservationType]; !ok {
		v.fail("Reservation type must be standard, premium, or group")
	}
	switch r.Status {
	case ReservationPending, ReservationConfirmed, ReservationQueued,
		ReservationCancelled, ReservationExpired, ReservationFulfilled:
	default:
		v.fail("Invalid reservation status")
	}
	v.failIf(r.MaxWaitDays < minMaxWaitDays || r.MaxWaitDays > maxMaxWaitDays, "Max wait days must be between 1 and 30")
	v.failIf(r.FeePaid < 0 || r.FeePaid > maxFeePaid, "Fee paid must be between 0 and 100")
	v.failIf(r.PreferredPickupDate != nil && r.PreferredPickupDate.IsZero(), "Invalid preferred pickup date")
	v.failIf(r.GroupReservation != nil && !r.GroupReservation.valid(), "Invalid group reservation data")
	return v.result()
}

// IsActive reports whether the reservation still holds or waits for a copy.
func (r Reservation) IsActive() bool {
	switch r.Status {
	case ReservationPending, ReservationConfirmed, ReservationQueued:
		return true
	}
	return false
}

// IsExpired reports whether an active reservation is past its expiry.
func (r Reservation) IsExpired(now time.Time) bool {
	return r.IsActive() && now.After(r.ExpiresAt)
}

func (r *Reservation) transition(to ReservationStatus) error {
	for _, allowed := range transitions[r.Status] {
		if allowed == to {
			r.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
}

// Confirm places a hold on an available copy.
func (r *Reservation) Confirm() error {
	if err := r.transition(ReservationConfirmed); err != nil {
		return err
	}
	r.QueuePosition = 0
	return nil
}

// Queue puts the reservation in line at position.
func (r *Reservation) Queue(position int) error {
	if err := r.transition(ReservationQueued); err != nil {
		return err
	}
	r.QueuePosition = position
	return nil
}

// Cancel withdraws an active reservation.
func (r *Reservation) Cancel() error {
	return r.leave(ReservationCancelled)
}

// Expire closes an active reservation whose wait ran out.
func (r *Reservation) Expire() error {
	return r.leave(ReservationExpired)
}

// Fulfill closes a confirmed hold once its member borrows the book.
func (r *Reservation) Fulfill() error {
	return r.leave(ReservationFulfilled)
}

func (r *Reservation) leave(to ReservationStatus) error {
	if err := r.transition(to); err != nil {
		return err
	}
	r.QueuePosition = 0
	return nil
}

// CalculatePriorityScore ranks the reservation for queue ordering and stores
// the result. member may be nil when the member is unknown.
func (r *Reservation) CalculatePriorityScore(member *Member) float64 {
	score, ok := typeWeights[r.ReservationType]
	if !ok {
		score = typeWeights[ReservationStandard]
	}
	if member != nil {
		score += member.PriorityScore() * 0.3
	}
	if r.SpecialRequests.AcademicPriority {
		score++
	}
	if r.SpecialRequests.AccessibilityNeeds {
		score += 0.5
	}
	score += r.FeePaid * 0.1
	if r.GroupReservation != nil {
		score += 0.2
	}

	r.PriorityScore = math.Min(score, maxPriorityScore)
	return r.PriorityScore
}
