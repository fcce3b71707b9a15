// Package messaging delivers CareRouter replies over WhatsApp through Twilio and parses
// the inbound webhook.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MinRecipientDigits is the shortest phone number accepted as a recipient.
const MinRecipientDigits = 6

var (
	ErrMissingCredentials = errors.New("account SID and auth token must be provided")
	ErrMissingFrom        = errors.New("from number must be provided")
	ErrInvalidRecipient   = errors.New("invalid recipient")
)

var (
	phoneNumberRegex = regexp.MustCompile(`[^0-9]`)
	tracer           = otel.Tracer("github.com/BTreeMap/CareRouter/internal/messaging")
)

// Sender delivers a text message to a recipient.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio sender.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio sender.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending WhatsApp number, with or without the "whatsapp:" prefix.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// messageCreator is the slice of the Twilio REST API the sender needs.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	api  messageCreator
	from string // "whatsapp:+1234567890"
}

// NewTwilioSender creates a sender. Unset options fall back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewTwilioSender(opts ...Option) (*TwilioSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("TwilioSender config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.From == "" {
		return nil, ErrMissingFrom
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{api: client.Api, from: whatsappAddress(cfg.From)}, nil
}

// SendMessage sends body to the WhatsApp number to.
func (s *TwilioSender) SendMessage(ctx context.Context, to string, body string) error {
	canonical, err := CanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	_, span := tracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("to", canonical))

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress("+" + canonical))
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioSender.SendMessage: send failed", "to", canonical, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("failed to send message to %s: %w", canonical, err)
	}
	if resp != nil && resp.Sid != nil {
		span.SetAttributes(attribute.String("message_sid", *resp.Sid))
	}
	slog.Debug("TwilioSender.SendMessage: message sent", "to", canonical)
	return nil
}

// CanonicalizeRecipient strips everything but digits from a phone number, including a
// "whatsapp:" prefix, and rejects numbers shorter than MinRecipientDigits.
func CanonicalizeRecipient(recipient string) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "", fmt.Errorf("%w: recipient cannot be empty", ErrInvalidRecipient)
	}
	canonical := phoneNumberRegex.ReplaceAllString(strings.TrimPrefix(recipient, "whatsapp:"), "")
	if canonical == "" {
		return "", fmt.Errorf("%w: no digits found in %q", ErrInvalidRecipient, recipient)
	}
	if len(canonical) < MinRecipientDigits {
		return "", fmt.Errorf("%w: %q is too short (minimum %d digits required)", ErrInvalidRecipient, canonical, MinRecipientDigits)
	}
	return canonical, nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// SentMessage is one message captured by MockSender.
type SentMessage struct {
	To   string
	Body string
}

// MockSender records messages instead of sending them.
type MockSender struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

func NewMockSender() *MockSender {
	return &MockSender{Sent: []SentMessage{}}
}

func (m *MockSender) SendMessage(_ context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return nil
}

// Messages returns a copy of the captured messages.
func (m *MockSender) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}
