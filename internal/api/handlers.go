package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/CareRouter/internal/messaging"
	"github.com/BTreeMap/CareRouter/internal/models"
)

const (
	channelHTTP   = "http"
	channelTwilio = "twilio"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Healthy())
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	r.Body = http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		s.metrics.ObserveInbound(channelHTTP, "invalid")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		s.metrics.ObserveInbound(channelHTTP, "invalid")
		msg := err.Error()
		if errors.Is(err, models.ErrMessageTooLong) {
			msg = "Message too long (max 4096 characters)"
		}
		writeJSONResponse(w, http.StatusBadRequest, models.Error(msg))
		return
	}

	userID := req.EffectiveUserID()
	slog.Debug("Server.chatHandler: processing message", "user_id", userID)
	env := s.turner.ProcessMessage(r.Context(), userID, strings.TrimSpace(req.Message))
	s.metrics.ObserveInbound(channelHTTP, "ok")
	writeJSONResponse(w, http.StatusOK, env)
}

func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if s.validator != nil && !s.validator.Validate(r) {
		slog.Warn("Server.twilioWebhookHandler: invalid twilio signature")
		s.metrics.ObserveInbound(channelTwilio, "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	in, err := messaging.ParseWebhook(r)
	if err != nil {
		slog.Warn("Server.twilioWebhookHandler: invalid webhook", "error", err)
		s.metrics.ObserveInbound(channelTwilio, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	userID, err := messaging.CanonicalizeRecipient(in.From)
	if err != nil {
		slog.Warn("Server.twilioWebhookHandler: invalid sender", "error", err, "from", in.From)
		s.metrics.ObserveInbound(channelTwilio, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in.Body = models.TruncateMessage(in.Body)

	slog.Info("Server.twilioWebhookHandler: inbound WhatsApp message", "user_id", userID, "message_sid", in.MessageSID)
	env := s.turner.ProcessMessage(r.Context(), userID, in.Body)
	reply := messaging.FormatReply(env)

	if s.sender == nil {
		s.metrics.ObserveInbound(channelTwilio, "ok")
		writeTwiML(w, reply)
		return
	}
	if err := s.sender.SendMessage(r.Context(), userID, reply); err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to send reply", "error", err, "user_id", userID)
		s.metrics.ObserveInbound(channelTwilio, "send_failed")
	} else {
		s.metrics.ObserveInbound(channelTwilio, "ok")
	}
	writeTwiML(w, "")
}
