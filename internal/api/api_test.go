package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BTreeMap/CareRouter/internal/messaging"
	"github.com/BTreeMap/CareRouter/internal/metrics"
	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/testutil"
)

type call struct {
	userID  string
	message string
}

type stubTurner struct {
	mu    sync.Mutex
	calls []call
}

func (s *stubTurner) ProcessMessage(ctx context.Context, userID, message string) models.Envelope {
	s.mu.Lock()
	s.calls = append(s.calls, call{userID: userID, message: message})
	s.mu.Unlock()
	env := models.NewEnvelope("echo: "+message, models.HandlerOrchestrator, time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC))
	env.SuggestedReplies = []string{"I have a fever"}
	return env
}

func newTestServer(opts ...Option) (*Server, *stubTurner, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	turner := &stubTurner{}
	opts = append([]Option{WithMetrics(metrics.New(reg)), WithGatherer(reg)}, opts...)
	return NewServer(turner, opts...), turner, reg
}

func decodeAPIResponse(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestChatHandlerInvalidJSON(t *testing.T) {
	s, turner, _ := newTestServer()
	rr := testutil.PostJSON(t, s.Handler(), "/chat", "{not json")

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
	if resp := testutil.AssertJSONResponse(t, rr, "error"); resp["message"] != "Invalid JSON format" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(turner.calls) != 0 {
		t.Errorf("expected no turns, got %d", len(turner.calls))
	}
}

func TestChatHandlerMissingMessage(t *testing.T) {
	s, turner, _ := newTestServer()

	for _, body := range []string{`{}`, `{"message":"   "}`, `{"user_id":"u1"}`} {
		rr := testutil.PostJSON(t, s.Handler(), "/chat", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
		if resp := decodeAPIResponse(t, rr); resp.Message != "No message provided" {
			t.Errorf("body %s: unexpected message %q", body, resp.Message)
		}
	}
	if len(turner.calls) != 0 {
		t.Errorf("expected no turns, got %d", len(turner.calls))
	}
}

func TestChatHandlerMessageTooLong(t *testing.T) {
	s, _, _ := newTestServer()
	body, _ := json.Marshal(models.ChatRequest{Message: strings.Repeat("a", models.MaxMessageLength+1)})

	rr := testutil.PostJSON(t, s.Handler(), "/chat", string(body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeAPIResponse(t, rr); !strings.Contains(resp.Message, "too long") {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestChatHandlerSuccess(t *testing.T) {
	s, turner, reg := newTestServer()
	rr := testutil.PostJSON(t, s.Handler(), "/chat", `{"message":"  hello  ","user_id":"u42"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var env models.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Response != "echo: hello" || env.Agent != models.HandlerOrchestrator {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(env.SuggestedReplies) != 1 {
		t.Errorf("expected suggested replies, got %v", env.SuggestedReplies)
	}
	if len(turner.calls) != 1 || turner.calls[0] != (call{userID: "u42", message: "hello"}) {
		t.Errorf("unexpected calls: %+v", turner.calls)
	}
	if got := testutil.CounterValue(t, reg, "carerouter_api_inbound_total"); got != 1 {
		t.Errorf("expected 1 inbound sample, got %v", got)
	}
}

func TestChatHandlerDefaultUserID(t *testing.T) {
	s, turner, _ := newTestServer()
	rr := testutil.PostJSON(t, s.Handler(), "/chat", `{"message":"hi"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if turner.calls[0].userID != models.DefaultUserID {
		t.Errorf("expected default user id, got %q", turner.calls[0].userID)
	}
}

func TestChatHandlerRejectsGet(t *testing.T) {
	s, _, _ := newTestServer()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	s, _, _ := newTestServer()
	rr := testutil.Get(t, s.Handler(), "/health")

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer()
	h := s.Handler()
	testutil.PostJSON(t, h, "/chat", `{"message":"hi"}`)

	rr := testutil.Get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `carerouter_api_inbound_total{channel="http",status="ok"} 1`) {
		t.Errorf("metrics output missing inbound counter:\n%s", rr.Body.String())
	}
}

func signTwilio(token, u string, form url.Values) string {
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
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const webhookURL = "http://care.example.com/webhooks/twilio"

func twilioRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, webhookURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(messaging.SignatureHeader, signature)
	}
	return req
}

func TestTwilioWebhookSendsReply(t *testing.T) {
	sender := messaging.NewMockSender()
	s, turner, _ := newTestServer(WithSender(sender))
	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+919876543210"}, "Body": {"I have a fever"}}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<Message>") {
		t.Errorf("expected empty TwiML when a sender is configured, got %s", rr.Body.String())
	}
	if len(turner.calls) != 1 || turner.calls[0].userID != "919876543210" {
		t.Fatalf("unexpected calls: %+v", turner.calls)
	}
	sent := sender.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "echo: I have a fever") || !strings.Contains(sent[0].Body, "1. I have a fever") {
		t.Errorf("unexpected outbound body: %q", sent[0].Body)
	}
}

func TestTwilioWebhookInlineReply(t *testing.T) {
	s, _, _ := newTestServer()
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"tom & jerry"}}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("expected application/xml, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<Message>") || !strings.Contains(rr.Body.String(), "tom &amp; jerry") {
		t.Errorf("expected escaped inline reply, got %s", rr.Body.String())
	}
}

func TestTwilioWebhookSignature(t *testing.T) {
	const token = "secret-token"
	s, turner, _ := newTestServer(WithValidator(messaging.NewValidator(token, webhookURL)))
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hello"}}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, signTwilio("wrong", webhookURL, form)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned request, got %d", rr.Code)
	}
	if len(turner.calls) != 0 {
		t.Fatalf("expected no turns for rejected requests, got %d", len(turner.calls))
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, signTwilio(token, webhookURL, form)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed request, got %d", rr.Code)
	}
}

func TestTwilioWebhookBadRequest(t *testing.T) {
	s, _, _ := newTestServer()

	for name, form := range map[string]url.Values{
		"missing body":   {"From": {"whatsapp:+919876543210"}},
		"missing from":   {"Body": {"hello"}},
		"invalid sender": {"From": {"abc"}, "Body": {"hello"}},
	} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, twilioRequest(form, ""))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rr.Code)
		}
	}
}

func TestTwilioWebhookTruncatesOnRuneBoundary(t *testing.T) {
	s, turner, _ := newTestServer()
	body := strings.Repeat("a", models.MaxMessageLength-1) + "नमस्ते"
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {body}}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(turner.calls) != 1 {
		t.Fatalf("expected one turn, got %d", len(turner.calls))
	}
	got := turner.calls[0].message
	if !utf8.ValidString(got) {
		t.Fatal("truncated message is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != models.MaxMessageLength {
		t.Errorf("expected %d characters, got %d", models.MaxMessageLength, n)
	}
}

func TestTwilioWebhookSendFailureStillAcknowledges(t *testing.T) {
	sender := messaging.NewMockSender()
	sender.Err = errors.New("twilio down")
	s, _, reg := newTestServer(WithSender(sender))
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hello"}}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, twilioRequest(form, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if n, err := promtest.GatherAndCount(reg, "carerouter_api_inbound_total"); err != nil || n != 1 {
		t.Errorf("expected one inbound series, got %d (err %v)", n, err)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _, _ := newTestServer(WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
