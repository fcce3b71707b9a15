package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// SignatureHeader carries the Twilio request signature.
const SignatureHeader = "X-Twilio-Signature"

// ErrMissingFields is returned for a webhook without a sender or a body.
var ErrMissingFields = errors.New("missing required twilio fields")

// Inbound is a parsed Twilio WhatsApp webhook.
type Inbound struct {
	MessageSID string
	AccountSID string
	From       string
	To         string
	Body       string
}

// ParseWebhook reads the form-encoded Twilio webhook from r.
func ParseWebhook(r *http.Request) (Inbound, error) {
	if err := r.ParseForm(); err != nil {
		return Inbound{}, fmt.Errorf("failed to parse form: %w", err)
	}
	in := Inbound{
		MessageSID: r.PostForm.Get("MessageSid"),
		AccountSID: r.PostForm.Get("AccountSid"),
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       strings.TrimSpace(r.PostForm.Get("Body")),
	}
	if in.From == "" || in.Body == "" {
		return in, ErrMissingFields
	}
	return in, nil
}

// Validator checks Twilio request signatures.
type Validator struct {
	rv  twilioclient.RequestValidator
	url string
}

// NewValidator creates a Validator for authToken. When webhookURL is empty the URL is
// rebuilt from each request.
func NewValidator(authToken, webhookURL string) *Validator {
	return &Validator{rv: twilioclient.NewRequestValidator(authToken), url: webhookURL}
}

// Validate reports whether r carries a valid signature.
func (v *Validator) Validate(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	url := v.url
	if url == "" {
		url = AbsoluteURL(r)
	}
	return v.rv.Validate(url, params, signature)
}

// AbsoluteURL reconstructs the public URL of r, honouring X-Forwarded-* headers.
func AbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

// FormatReply renders an envelope as plain WhatsApp text: the reply, a one-line summary
// per card and the suggested replies as a numbered list.
func FormatReply(env models.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s", env.Icon, env.AgentType, strings.TrimSpace(env.Response))

	if lines := cardLines(env.Cards); len(lines) > 0 {
		b.WriteString("\n")
		for _, l := range lines {
			b.WriteString("\n• ")
			b.WriteString(l)
		}
	}
	if len(env.SuggestedReplies) > 0 {
		b.WriteString("\n\nYou can ask:")
		for i, s := range env.SuggestedReplies {
			fmt.Fprintf(&b, "\n%d. %s", i+1, s)
		}
	}
	return b.String()
}

func cardLines(cards []models.Card) []string {
	var out []string
	for _, c := range cards {
		switch v := c.(type) {
		case models.HospitalCard:
			out = append(out, v.Title+" - "+v.Description)
		case models.LabCard:
			out = append(out, v.Title+" - "+v.Description)
		case models.VisitTypeCard:
			out = append(out, v.Title)
		case models.TestPackageCard:
			out = append(out, fmt.Sprintf("%s (%s, ₹%d)", v.Title, v.Subtitle, v.Action.Price))
		case models.MedicineCard:
			out = append(out, v.MedicineName+" - "+v.Price+" ["+v.Status+"]")
		case models.QuickReplyCard:
			out = append(out, v.Title)
		case models.BookingConfirmationCard:
			out = append(out, v.Title+": "+v.AppointmentID)
		case models.TestBookingConfirmationCard:
			out = append(out, v.Title+": "+v.BookingID)
		case models.LabBookingConfirmationCard:
			out = append(out, v.Title+": "+v.BookingID)
		}
	}
	return out
}
