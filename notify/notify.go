// Package notify delivers order lifecycle notifications to customers and
// operators. Delivery is best-effort and always happens after the state
// change it reports has committed; a failed delivery never affects the order.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/topup/id"
)

// Event names a notification type.
type Event string

const (
	EventOrderCreated         Event = "order.created"
	EventOrderConfirmed       Event = "order.confirmed"
	EventPaymentSubmitted     Event = "order.payment_submitted"
	EventOrderCompleted       Event = "order.completed"
	EventOrderCancelled       Event = "order.cancelled"
	EventReferralBonusGranted Event = "referral.bonus_granted"
)

// RecipientKind separates customer channels from operator channels.
type RecipientKind string

const (
	RecipientCustomer RecipientKind = "customer"
	RecipientOperator RecipientKind = "operator"
)

// Recipient identifies where a notification goes. ID is the channel identity.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   string        `json:"id"`
}

// Customer returns a customer recipient.
func Customer(customerID string) Recipient {
	return Recipient{Kind: RecipientCustomer, ID: customerID}
}

// Operator returns an operator recipient.
func Operator(operatorID string) Recipient {
	return Recipient{Kind: RecipientOperator, ID: operatorID}
}

// Button is an action the recipient can trigger in reply. Action is an
// opaque payload such as "confirm:ord_01h...".
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Operator actions carried by order buttons.
const (
	ActionConfirm  = "confirm"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
)

// OrderButton returns a button whose action is "{action}:{orderID}".
func OrderButton(label, action string, orderID id.OrderID) Button {
	return Button{Label: label, Action: action + ":" + orderID.String()}
}

// ParseAction splits a button action produced by OrderButton.
func ParseAction(s string) (string, id.OrderID, error) {
	action, raw, ok := strings.Cut(s, ":")
	if !ok || action == "" {
		return "", id.Nil, fmt.Errorf("notify: malformed action %q", s)
	}
	orderID, err := id.ParseOrderID(raw)
	if err != nil {
		return "", id.Nil, err
	}
	return action, orderID, nil
}

type Notification struct {
	ID         id.NotificationID `json:"id"`
	Event      Event             `json:"event"`
	Recipient  Recipient         `json:"recipient"`
	Text       string            `json:"text"`
	Buttons    []Button          `json:"buttons,omitempty"`
	OrderID    id.OrderID        `json:"order_id,omitempty"`
	Attachment string            `json:"attachment,omitempty"`
	Data       map[string]any    `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// New returns a notification with a fresh ID and timestamp.
func New(event Event, to Recipient, text string) *Notification {
	return &Notification{
		ID:        id.NewNotificationID(),
		Event:     event,
		Recipient: to,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// ──────────────────────────────────────────────────
// Senders
// ──────────────────────────────────────────────────

// Sender delivers one notification over a transport.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n *Notification) error

// Send calls f(ctx, n).
func (f SenderFunc) Send(ctx context.Context, n *Notification) error { return f(ctx, n) }

// LogSender writes notifications to a logger. It is the default sender.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, n *Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"event", n.Event,
		"recipient_kind", n.Recipient.Kind,
		"recipient_id", n.Recipient.ID,
		"order_id", n.OrderID.String(),
		"buttons", len(n.Buttons),
	)
	return nil
}

// MemorySender records every notification it is given.
type MemorySender struct {
	mu   sync.Mutex
	sent []*Notification
}

func NewMemorySender() *MemorySender { return &MemorySender{} }

func (s *MemorySender) Send(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns the recorded notifications in delivery order.
func (s *MemorySender) Sent() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// ByEvent returns the recorded notifications of one event type.
func (s *MemorySender) ByEvent(event Event) []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.sent {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

// Reset clears the recorded notifications.
func (s *MemorySender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// Multi fans a notification out to every sender and joins their errors.
func Multi(senders ...Sender) Sender {
	return SenderFunc(func(ctx context.Context, n *Notification) error {
		var errs []error
		for _, s := range senders {
			if err := s.Send(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
