package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/pkg/logger"
	"github.com/entraops/guestgate/pkg/metrics"
)

const (
	defaultInviteTimeout = 12 * time.Second

	// rawErrorLimit bounds how much unstructured upstream error text reaches
	// the caller.
	rawErrorLimit = 280
)

// safeResponseFields is the whitelist of upstream JSON fields allowed back to
// the UI. Everything else is stripped, an information-disclosure control.
var safeResponseFields = []string{"message", "status", "code", "error", "detail"}

// InviteSender is the outbound invitation operation, satisfied by the Graph
// client.
type InviteSender interface {
	CreateInvitation(ctx context.Context, payload map[string]any) (int, []byte, error)
}

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteTimeout overrides the per-call upstream timeout.
func WithInviteTimeout(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// InviteService submits invitations upstream, one entry at a time.
type InviteService struct {
	sender  InviteSender
	timeout time.Duration
	log     *zap.Logger
}

// NewInviteService constructs an InviteService with the provided sender.
func NewInviteService(sender InviteSender, opts ...InviteOption) (*InviteService, error) {
	if sender == nil {
		return nil, errors.New("invite service: sender is required")
	}

	service := &InviteService{
		sender:  sender,
		timeout: defaultInviteTimeout,
		log:     logger.WithModule("invites"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// BuildInvitePayload maps a normalized entry into the wire payload. Keys for
// optional values are omitted entirely, rather than sent as null or false,
// so the backend applies its own defaults. The redirect URL rides under two
// synonymous keys for backend compatibility.
func BuildInvitePayload(entry models.InviteEntry) map[string]any {
	payload := map[string]any{
		"email":             entry.Email,
		"displayName":       entry.DisplayName,
		"inviteRedirectUrl": entry.RedirectURL,
		"inviteRedirectURL": entry.RedirectURL,
	}

	if entry.FirstName != "" {
		payload["firstName"] = entry.FirstName
	}
	if entry.LastName != "" {
		payload["lastName"] = entry.LastName
	}
	if entry.SendEmail != nil {
		payload["sendEmail"] = *entry.SendEmail
	}
	if entry.CustomMessage != "" {
		payload["customizedMessageBody"] = entry.CustomMessage
	}
	if entry.ResetRedemption != nil {
		payload["resetRedemption"] = *entry.ResetRedemption
	}

	return payload
}

// toGraphInvitation translates the wire payload into the shape the directory
// invite operation accepts.
func toGraphInvitation(payload map[string]any) map[string]any {
	invitation := map[string]any{
		"invitedUserEmailAddress": payload["email"],
		"invitedUserDisplayName":  payload["displayName"],
		"inviteRedirectUrl":       payload["inviteRedirectUrl"],
		"inviteRedirectURL":       payload["inviteRedirectURL"],
	}

	if first, ok := payload["firstName"]; ok {
		invitation["givenName"] = first
	}
	if last, ok := payload["lastName"]; ok {
		invitation["surname"] = last
	}
	if send, ok := payload["sendEmail"]; ok {
		invitation["sendInvitationMessage"] = send
	}
	if msg, ok := payload["customizedMessageBody"]; ok {
		invitation["invitedUserMessageInfo"] = map[string]any{"customizedMessageBody": msg}
	}
	if reset, ok := payload["resetRedemption"]; ok {
		invitation["resetRedemption"] = reset
	}

	return invitation
}

// Send submits one entry with a bounded timeout and classifies the response.
// Transport failures and timeouts surface a generic message; upstream error
// bodies are field-filtered and truncated before display.
func (s *InviteService) Send(ctx context.Context, entry models.InviteEntry) models.InviteOutcome {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload := BuildInvitePayload(entry)
	status, body, err := s.sender.CreateInvitation(callCtx, toGraphInvitation(payload))
	if err != nil {
		s.log.Warn("invite transport failure", zap.String("email", entry.Email), zap.Error(err))
		metrics.InviteOutcomes.WithLabelValues("failed").Inc()
		return models.InviteOutcome{
			Email: entry.Email,
			Error: "directory request failed; please try again",
		}
	}

	detail := filterSafeFields(body)

	if status < 200 || status >= 300 {
		metrics.InviteOutcomes.WithLabelValues("failed").Inc()
		return models.InviteOutcome{
			Email:  entry.Email,
			Error:  upstreamErrorText(detail, body),
			Detail: detail,
		}
	}

	metrics.InviteOutcomes.WithLabelValues("sent").Inc()
	return models.InviteOutcome{
		Email:  entry.Email,
		OK:     true,
		Detail: detail,
	}
}

// SendBulk submits entries strictly sequentially, in input order, attempting
// every entry regardless of prior failures. Sequential submission bounds load
// on the directory service and keeps the failure report deterministic.
func (s *InviteService) SendBulk(ctx context.Context, entries []models.InviteEntry) models.BulkResult {
	result := models.BulkResult{ValidRows: len(entries)}

	for _, entry := range entries {
		outcome := s.Send(ctx, entry)
		if outcome.OK {
			result.Invited++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, outcome)
	}

	return result
}

// filterSafeFields parses the upstream body and keeps only whitelisted
// top-level fields. A non-JSON body yields nil.
func filterSafeFields(body []byte) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	filtered := make(map[string]any)
	for _, key := range safeResponseFields {
		if v, ok := parsed[key]; ok {
			filtered[key] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func upstreamErrorText(detail map[string]any, body []byte) string {
	if errVal, ok := detail["error"]; ok {
		switch e := errVal.(type) {
		case string:
			return e
		case map[string]any:
			if msg, ok := e["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if msg, ok := detail["message"].(string); ok && msg != "" {
		return msg
	}

	raw := string(body)
	if len(raw) > rawErrorLimit {
		cut := rawErrorLimit
		// Back up so a multi-byte rune is never split.
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	if raw == "" {
		raw = "invitation request failed"
	}
	return raw
}
