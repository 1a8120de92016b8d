package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-trainer/internal/users"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	EventPaymentSucceeded = "invoice.payment_succeeded"
	EventPaymentFailed    = "invoice.payment_failed"
)

var (
	ErrNoCustomer       = errors.New("No Stripe customer found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrNotConfigured    = errors.New("stripe webhook secret not configured")
	// ErrGateway wraps failures talking to Stripe.
	ErrGateway = errors.New("stripe request failed")
)

// CustomerLinker persists a discovered Stripe customer id on the user.
type CustomerLinker interface {
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

type Service struct {
	gateway       Gateway
	records       Records
	linker        CustomerLinker
	webhookSecret string
	clock         func() time.Time
}

func NewService(gateway Gateway, records Records, linker CustomerLinker, webhookSecret string) *Service {
	return &Service{
		gateway:       gateway,
		records:       records,
		linker:        linker,
		webhookSecret: webhookSecret,
		clock:         time.Now,
	}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Records exposes the repository so the access gate can share it.
func (s *Service) Records() Records { return s.records }

// WebhookSecretConfigured reports whether signed events can be verified.
func (s *Service) WebhookSecretConfigured() bool { return s.webhookSecret != "" }

// CreatePortalSession returns a billing portal URL for the user. A customer
// found by email is linked to the user; none is ever created here.
func (s *Service) CreatePortalSession(ctx context.Context, u users.User, origin string) (string, error) {
	customerID := u.StripeCustomerID
	if customerID == "" {
		if u.Email == "" {
			return "", ErrNoCustomer
		}
		id, err := s.gateway.FindCustomerByEmail(ctx, u.Email)
		if err != nil {
			return "", fmt.Errorf("%w: find customer: %v", ErrGateway, err)
		}
		if id == "" {
			return "", ErrNoCustomer
		}
		customerID = id
		if s.linker != nil {
			if err := s.linker.SetStripeCustomer(ctx, u.ID, customerID); err != nil {
				return "", fmt.Errorf("link customer: %w", err)
			}
		}
	}
	returnURL := strings.TrimRight(origin, "/") + "/account"
	url, err := s.gateway.CreatePortalSession(ctx, customerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", ErrGateway, err)
	}
	return url, nil
}

// PaymentSucceeded clears every PaymentFailed row for email.
func (s *Service) PaymentSucceeded(ctx context.Context, email string) (int, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	return s.records.DeletePaymentFailedByEmail(ctx, email)
}

// RecordPaymentFailed stores a failure marker. Redelivery of the same invoice
// is a no-op.
func (s *Service) RecordPaymentFailed(ctx context.Context, email, invoiceID string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	return s.records.InsertPaymentFailed(ctx, PaymentFailed{
		ID:              uuid.NewString(),
		Email:           email,
		StripeInvoiceID: invoiceID,
		CreatedAt:       s.clock().UTC(),
	})
}

// EventResult reports what HandleStripeEvent did.
type EventResult struct {
	Type    string `json:"type"`
	Email   string `json:"email,omitempty"`
	Handled bool   `json:"handled"`
	Cleared int    `json:"cleared,omitempty"`
}

// HandleStripeEvent verifies a signed webhook payload and applies invoice
// payment events. Other event types are acknowledged and ignored.
func (s *Service) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) (EventResult, error) {
	if s.webhookSecret == "" {
		return EventResult{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return EventResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return s.applyEvent(ctx, event)
}

func (s *Service) applyEvent(ctx context.Context, event stripe.Event) (EventResult, error) {
	res := EventResult{Type: string(event.Type)}
	switch res.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
	default:
		return res, nil
	}
	if event.Data == nil {
		return res, fmt.Errorf("%w: event has no data", ErrInvalidArgument)
	}
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return res, fmt.Errorf("%w: decode invoice: %v", ErrInvalidArgument, err)
	}
	res.Email = strings.ToLower(inv.CustomerEmail)

	if res.Type == EventPaymentSucceeded {
		n, err := s.PaymentSucceeded(ctx, inv.CustomerEmail)
		if err != nil {
			return res, err
		}
		res.Handled, res.Cleared = true, n
		return res, nil
	}
	if _, err := s.RecordPaymentFailed(ctx, inv.CustomerEmail, inv.ID); err != nil {
		return res, err
	}
	res.Handled = true
	return res, nil
}
