// Package notify talks to the member notification gateway. The gateway is
// simulated in memory; it still requires a bearer token like the real one.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the notification type understood by the gateway.
type Kind string

const (
	KindQueuePositionUpdate  Kind = "queue_position_update"
	KindAvailabilityAlert    Kind = "availability_alert"
	KindReservationConfirmed Kind = "reservation_confirmed"
)

const tokenTTL = time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid client credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoChannels         = errors.New("notification has no delivery channels")
)

// Notification is a message scheduled for delivery to a member.
type Notification struct {
	ID            string    `json:"id"`
	MemberID      int       `json:"member_id"`
	ReservationID string    `json:"reservation_id"`
	Kind          Kind      `json:"type"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Channels      []string  `json:"channels"`
}

// Token represents an OAuth access token
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// MockClient simulates the notification gateway API with OAuth
type MockClient struct {
	clientID     string
	clientSecret string
	token        *Token
	scheduled    map[int][]Notification
	now          func() time.Time
	mutex        sync.Mutex
}

// Option configures a MockClient.
type Option func(*MockClient)

// WithClock makes the client read time from now.
func WithClock(now func() time.Time) Option {
	return func(c *MockClient) {
		c.now = now
	}
}

// WithCredentials overrides the mock client credentials.
func WithCredentials(clientID, clientSecret string) Option {
	return func(c *MockClient) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// NewMockClient initializes the client with mock credentials
func NewMockClient(opts ...Option) *MockClient {
	c := &MockClient{
		clientID:     "mock-client-id",
		clientSecret: "mock-client-secret",
		scheduled:    make(map[int][]Notification),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetToken returns the cached token, requesting a new one once it expires
func (c *MockClient) GetToken() (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if c.token != nil && c.token.ExpiresAt.After(now) {
		return c.token.AccessToken, nil
	}

	if c.clientID != "mock-client-id" || c.clientSecret != "mock-client-secret" {
		return "", ErrInvalidCredentials
	}

	c.token = &Token{
		AccessToken: "token-" + uuid.NewString(),
		ExpiresAt:   now.Add(tokenTTL),
	}
	return c.token.AccessToken, nil
}

// validateToken must be called with the mutex held
func (c *MockClient) validateToken(token string) error {
	if c.token == nil || c.token.AccessToken != token || !c.token.ExpiresAt.After(c.now()) {
		return ErrInvalidToken
	}
	return nil
}

// Schedule queues n for delivery, requiring a valid token. It returns the
// gateway-assigned notification id.
func (c *MockClient) Schedule(token string, n Notification) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.validateToken(token); err != nil {
		return "", err
	}
	if n.MemberID <= 0 {
		return "", fmt.Errorf("invalid member id %d", n.MemberID)
	}
	if len(n.Channels) == 0 {
		return "", ErrNoChannels
	}

	n.ID = "ntf-" + uuid.NewString()
	n.Channels = append([]string(nil), n.Channels...)
	c.scheduled[n.MemberID] = append(c.scheduled[n.MemberID], n)
	return n.ID, nil
}

// Scheduled lists the notifications queued for a member, oldest first
func (c *MockClient) Scheduled(memberID int) []Notification {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Notification(nil), c.scheduled[memberID]...)
}
