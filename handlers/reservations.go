package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"library-api/models"
	"library-api/notify"
	"library-api/service"
)

var reservationMessages = fieldMessages{
	"member_id":                "Member ID must be a positive integer",
	"book_id":                  "Book ID must be a positive integer",
	"reservation_type":         "Reservation type must be standard, premium, or group",
	"preferred_pickup_date":    "Preferred pickup date must be a valid ISO 8601 date",
	"max_wait_days":            "Max wait days must be between 1 and 30",
	"fee_paid":                 "Fee paid must be between 0 and 100",
	"notification_preferences": "Notification preferences must be an object",
	"group_reservation":        "Group reservation must be an object",
	"special_requests":         "Special requests must be an object",
	"payment_info":             "Payment info must be an object",
}

type reservationRequest struct {
	MemberID                *int                            `json:"member_id" binding:"required,min=1"`
	BookID                  *int                            `json:"book_id" binding:"required,min=1"`
	ReservationType         string                          `json:"reservation_type" binding:"omitempty,oneof=standard premium group"`
	PreferredPickupDate     *string                         `json:"preferred_pickup_date" binding:"omitempty,isodate"`
	MaxWaitDays             *int                            `json:"max_wait_days" binding:"omitempty,min=1,max=30"`
	FeePaid                 *float64                        `json:"fee_paid" binding:"omitempty,min=0,max=100"`
	NotificationPreferences *models.NotificationPreferences `json:"notification_preferences"`
	GroupReservation        *models.GroupReservation        `json:"group_reservation"`
	SpecialRequests         models.SpecialRequests          `json:"special_requests"`
	PaymentInfo             models.PaymentInfo              `json:"payment_info"`
}

func (r reservationRequest) toService() service.ReservationRequest {
	req := service.ReservationRequest{
		MemberID:                *r.MemberID,
		BookID:                  *r.BookID,
		ReservationType:         models.ReservationType(r.ReservationType),
		NotificationPreferences: r.NotificationPreferences,
		GroupReservation:        r.GroupReservation,
		SpecialRequests:         r.SpecialRequests,
		PaymentInfo:             r.PaymentInfo,
	}
	if r.PreferredPickupDate != nil {
		t, _ := models.ParseDate(*r.PreferredPickupDate)
		req.PreferredPickupDate = &t
	}
	if r.MaxWaitDays != nil {
		req.MaxWaitDays = *r.MaxWaitDays
	}
	if r.FeePaid != nil {
		req.FeePaid = *r.FeePaid
	}
	return req
}

type reservationDetails struct {
	CreatedAt         time.Time              `json:"created_at"`
	ExpiresAt         time.Time              `json:"expires_at"`
	PickupWindowStart *time.Time             `json:"pickup_window_start"`
	PickupWindowEnd   *time.Time             `json:"pickup_window_end"`
	ReservationType   models.ReservationType `json:"reservation_type"`
	FeePaid           float64                `json:"fee_paid"`
}

type queueAnalytics struct {
	TotalInQueue      int     `json:"total_in_queue"`
	AvgWaitTimeDays   float64 `json:"avg_wait_time_days"`
	QueueMovementRate string  `json:"queue_movement_rate"`
	CancellationRate  float64 `json:"cancellation_rate"`
}

type priorityFactors struct {
	BorrowingFrequency   float64  `json:"borrowing_frequency"`
	ReturnPunctuality    float64  `json:"return_punctuality"`
	MembershipTier       string   `json:"membership_tier"`
	SpecialCircumstances []string `json:"special_circumstances"`
	LoyaltyScore         float64  `json:"loyalty_score"`
}

type conflictResolution struct {
	SimultaneousRequests int    `json:"simultaneous_requests"`
	ResolutionMethod     string `json:"resolution_method"`
	CompetingMembers     []int  `json:"competing_members"`
}

type reservationResponse struct {
	ReservationID             string                   `json:"reservation_id"`
	MemberID                  int                      `json:"member_id"`
	BookID                    int                      `json:"book_id"`
	BookTitle                 string                   `json:"book_title"`
	ReservationStatus         models.ReservationStatus `json:"reservation_status"`
	QueuePosition             int                      `json:"queue_position"`
	EstimatedAvailabilityDate *time.Time               `json:"estimated_availability_date"`
	PriorityScore             float64                  `json:"priority_score"`
	ReservationDetails        reservationDetails       `json:"reservation_details"`
	QueueAnalytics            queueAnalytics           `json:"queue_analytics"`
	MemberPriorityFactors     priorityFactors          `json:"member_priority_factors"`
	NotificationsScheduled    []notify.Notification    `json:"notifications_scheduled"`
	ConflictResolution        conflictResolution       `json:"conflict_resolution"`
}

func toReservationResponse(res service.ReservationResult) reservationResponse {
	r := res.Reservation
	notifications := res.Notifications
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	return reservationResponse{
		ReservationID:             r.ReservationID,
		MemberID:                  r.MemberID,
		BookID:                    r.BookID,
		BookTitle:                 res.Book.Title,
		ReservationStatus:         r.Status,
		QueuePosition:             r.QueuePosition,
		EstimatedAvailabilityDate: r.EstimatedAvailabilityDate,
		PriorityScore:             r.PriorityScore,
		ReservationDetails: reservationDetails{
			CreatedAt:         r.CreatedAt,
			ExpiresAt:         r.ExpiresAt,
			PickupWindowStart: r.PickupWindowStart,
			PickupWindowEnd:   r.PickupWindowEnd,
			ReservationType:   r.ReservationType,
			FeePaid:           r.FeePaid,
		},
		QueueAnalytics: queueAnalytics{
			TotalInQueue:      res.QueueLength,
			AvgWaitTimeDays:   5.2,
			QueueMovementRate: "moderate",
			CancellationRate:  0.15,
		},
		MemberPriorityFactors: priorityFactors{
			BorrowingFrequency:   0.3,
			ReturnPunctuality:    0.9,
			MembershipTier:       "gold",
			SpecialCircumstances: r.SpecialRequests.Circumstances(),
			LoyaltyScore:         8.5,
		},
		NotificationsScheduled: notifications,
		ConflictResolution: conflictResolution{
			ResolutionMethod: "priority_score",
			CompetingMembers: []int{},
		},
	}
}

// ReservationHandler serves reservations and book queues.
type ReservationHandler struct {
	lib  *service.Library
	errs errorResponder
}

// Create places a reservation and reports its queue analytics.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req reservationRequest
	if !bindJSON(c, &req, reservationMessages) {
		return
	}

	res, err := h.lib.Reserve(c.Request.Context(), req.toService())
	if err != nil {
		h.reservationError(c, *req.BookID, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

// reservationError reports reservation conflicts with the structured
// reservation_conflict body. Other failures use the common mapping.
func (h *ReservationHandler) reservationError(c *gin.Context, bookID int, err error) {
	var serr *service.Error
	switch {
	case service.KindOf(err) == service.KindConflict && errors.As(err, &serr) && serr.Code != "":
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "reservation_conflict",
			"message": serr.Message,
			"details": gin.H{
				"validation_errors": []gin.H{{
					"field":   serr.Field,
					"error":   serr.Code,
					"details": serr.Detail,
				}},
			},
		})
	case service.KindOf(err) == service.KindValidation:
		position := 1
		if queue, qerr := h.lib.Queue(c.Request.Context(), bookID); qerr == nil {
			position = len(queue) + 1
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "reservation_conflict",
			"message": "Multiple complex validation failures detected",
			"details": gin.H{
				"validation_errors": []gin.H{{
					"field":   "general",
					"error":   "validation_failed",
					"details": err.Error(),
				}},
				"suggested_alternatives": gin.H{
					"alternative_books": []int{},
					"alternative_dates": []string{},
					"upgrade_options":   []string{"premium_reservation", "group_reservation"},
				},
				"queue_impact": gin.H{
					"estimated_wait_time":        "7-10 days",
					"queue_position_if_accepted": position,
				},
			},
		})
	default:
		h.errs.respond(c, err)
	}
}

// Get returns one reservation.
func (h *ReservationHandler) Get(c *gin.Context) {
	r, err := h.lib.GetReservation(c.Request.Context(), c.Param("reservation_id"))
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Cancel cancels an active reservation.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id := c.Param("reservation_id")
	r, err := h.lib.CancelReservation(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     fmt.Sprintf("reservation with id: %s has been cancelled successfully", id),
		"reservation": r,
	})
}

// ForMember lists a member's reservations.
func (h *ReservationHandler) ForMember(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	reservations, err := h.lib.MemberReservations(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": id, "reservations": nonNil(reservations)})
}

// Queue lists the waiting reservations of a book.
func (h *ReservationHandler) Queue(c *gin.Context) {
	id, ok := bookIDParam(c)
	if !ok {
		return
	}
	queue, err := h.lib.Queue(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book_id": id, "queue": nonNil(queue)})
}

func nonNil(rs []models.Reservation) []models.Reservation {
	if rs == nil {
		return []models.Reservation{}
	}
	return rs
}
