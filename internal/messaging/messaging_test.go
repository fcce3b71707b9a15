package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CareRouter/internal/models"
)

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func sign(token, u string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(u)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	h := hmac.New(sha1.New, []byte(token))
	h.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func webhookRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://care.example.com/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNewTwilioSenderValidatesConfig(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	_, err := NewTwilioSender()
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewTwilioSender(WithAccountSID("AC1"), WithAuthToken("tok"))
	assert.ErrorIs(t, err, ErrMissingFrom)

	t.Setenv("TWILIO_FROM_NUMBER", "+14155550100")
	s, err := NewTwilioSender(WithAccountSID("AC1"), WithAuthToken("tok"))
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+14155550100", s.from)
}

func TestTwilioSenderSendMessage(t *testing.T) {
	fc := &fakeCreator{}
	s := &TwilioSender{api: fc, from: "whatsapp:+14155550100"}

	require.NoError(t, s.SendMessage(context.Background(), "whatsapp:+91 98765-43210", "hello"))
	require.Len(t, fc.params, 1)
	assert.Equal(t, "whatsapp:+919876543210", *fc.params[0].To)
	assert.Equal(t, "whatsapp:+14155550100", *fc.params[0].From)
	assert.Equal(t, "hello", *fc.params[0].Body)

	assert.ErrorIs(t, s.SendMessage(context.Background(), "12", "hi"), ErrInvalidRecipient)

	fc.err = errors.New("rate limited")
	err := s.SendMessage(context.Background(), "+919876543210", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCanonicalizeRecipient(t *testing.T) {
	got, err := CanonicalizeRecipient("whatsapp:+1 (415) 555-0100")
	require.NoError(t, err)
	assert.Equal(t, "14155550100", got)

	_, err = CanonicalizeRecipient("")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = CanonicalizeRecipient("abc")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestParseWebhook(t *testing.T) {
	in, err := ParseWebhook(webhookRequest(url.Values{
		"MessageSid": {"SM1"}, "From": {"whatsapp:+14155550100"}, "To": {"whatsapp:+14155550199"}, "Body": {"  I have a fever  "},
	}))
	require.NoError(t, err)
	assert.Equal(t, "SM1", in.MessageSID)
	assert.Equal(t, "whatsapp:+14155550100", in.From)
	assert.Equal(t, "I have a fever", in.Body)

	_, err = ParseWebhook(webhookRequest(url.Values{"From": {"whatsapp:+14155550100"}}))
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestValidatorSignature(t *testing.T) {
	form := url.Values{"From": {"whatsapp:+14155550100"}, "Body": {"hello"}, "MessageSid": {"SM1"}}
	const token = "secret-token"
	target := "http://care.example.com/webhooks/twilio"

	req := webhookRequest(form)
	req.Header.Set(SignatureHeader, sign(token, target, form))
	assert.True(t, NewValidator(token, "").Validate(req))

	req = webhookRequest(form)
	req.Header.Set(SignatureHeader, sign(token, target, form))
	assert.True(t, NewValidator(token, target).Validate(req))

	req = webhookRequest(form)
	req.Header.Set(SignatureHeader, sign("other-token", target, form))
	assert.False(t, NewValidator(token, "").Validate(req))

	assert.False(t, NewValidator(token, "").Validate(webhookRequest(form)), "unsigned requests are rejected")
}

func TestAbsoluteURLHonoursForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio?x=1", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "care.example.com")
	assert.Equal(t, "https://care.example.com/webhooks/twilio?x=1", AbsoluteURL(req))
}

func TestFormatReply(t *testing.T) {
	env := models.NewEnvelope("Which lab would you like?", models.HandlerScheduling, time.Now())
	env.Cards = []models.Card{
		models.LabCard{Title: "SRL Diagnostics", Description: "Trusted lab"},
		models.QuickReplyCard{Title: "Get a care plan"},
	}
	env.SuggestedReplies = []string{"What are the lab timings?", "Is home collection free?"}

	out := FormatReply(env)
	assert.True(t, strings.HasPrefix(out, "📅 Appointment Scheduling\n\nWhich lab would you like?"))
	assert.Contains(t, out, "• SRL Diagnostics - Trusted lab")
	assert.Contains(t, out, "• Get a care plan")
	assert.Contains(t, out, "1. What are the lab timings?\n2. Is home collection free?")
}

func TestMockSender(t *testing.T) {
	m := NewMockSender()
	require.NoError(t, m.SendMessage(context.Background(), "+1", "hi"))
	assert.Equal(t, []SentMessage{{To: "+1", Body: "hi"}}, m.Messages())

	m.Err = errors.New("down")
	assert.Error(t, m.SendMessage(context.Background(), "+1", "hi"))
}
