package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/entraops/guestgate/internal/models"
)

type senderStub struct {
	status   int
	body     []byte
	err      error
	payloads []map[string]any
}

func (s *senderStub) CreateInvitation(ctx context.Context, payload map[string]any) (int, []byte, error) {
	s.payloads = append(s.payloads, payload)
	return s.status, s.body, s.err
}

func TestBuildInvitePayloadOmitsUnsetKeys(t *testing.T) {
	payload := BuildInvitePayload(models.InviteEntry{
		Email:       "guest@external.com",
		RedirectURL: "https://myapplications.microsoft.com",
	})

	require.Equal(t, "guest@external.com", payload["email"])
	require.Equal(t, "", payload["displayName"])
	require.Equal(t, "https://myapplications.microsoft.com", payload["inviteRedirectUrl"])
	require.Equal(t, "https://myapplications.microsoft.com", payload["inviteRedirectURL"])

	for _, key := range []string{"firstName", "lastName", "sendEmail", "customizedMessageBody", "resetRedemption"} {
		require.NotContains(t, payload, key)
	}
}

func TestBuildInvitePayloadIncludesExplicitValues(t *testing.T) {
	payload := BuildInvitePayload(models.InviteEntry{
		Email:           "guest@external.com",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		DisplayName:     "Ada Lovelace",
		RedirectURL:     "https://myapplications.microsoft.com",
		SendEmail:       models.Bool(false),
		CustomMessage:   "Welcome",
		ResetRedemption: models.Bool(true),
	})

	require.Equal(t, "Ada", payload["firstName"])
	require.Equal(t, "Lovelace", payload["lastName"])
	require.Equal(t, false, payload["sendEmail"])
	require.Equal(t, "Welcome", payload["customizedMessageBody"])
	require.Equal(t, true, payload["resetRedemption"])
}

func TestSendTranslatesToDirectoryShape(t *testing.T) {
	sender := &senderStub{status: http.StatusCreated, body: []byte(`{}`)}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{
		Email:         "guest@external.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DisplayName:   "Ada Lovelace",
		RedirectURL:   "https://myapplications.microsoft.com",
		SendEmail:     models.Bool(true),
		CustomMessage: "Hello",
	})

	require.True(t, outcome.OK)
	require.Len(t, sender.payloads, 1)

	sent := sender.payloads[0]
	require.Equal(t, "guest@external.com", sent["invitedUserEmailAddress"])
	require.Equal(t, "Ada Lovelace", sent["invitedUserDisplayName"])
	require.Equal(t, "Ada", sent["givenName"])
	require.Equal(t, "Lovelace", sent["surname"])
	require.Equal(t, "https://myapplications.microsoft.com", sent["inviteRedirectUrl"])
	require.Equal(t, "https://myapplications.microsoft.com", sent["inviteRedirectURL"])
	require.Equal(t, true, sent["sendInvitationMessage"])
	require.Equal(t, map[string]any{"customizedMessageBody": "Hello"}, sent["invitedUserMessageInfo"])
	require.NotContains(t, sent, "resetRedemption")
}

func TestSendFiltersUpstreamFields(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"message":         "partially processed",
		"code":            "Request_Throttled",
		"internalTraceId": "secret-diagnostic",
		"stack":           "at line 42",
	})
	sender := &senderStub{status: http.StatusTooManyRequests, body: body}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{Email: "guest@external.com"})
	require.False(t, outcome.OK)
	require.Equal(t, "partially processed", outcome.Error)
	require.Contains(t, outcome.Detail, "code")
	require.NotContains(t, outcome.Detail, "internalTraceId")
	require.NotContains(t, outcome.Detail, "stack")
}

func TestSendUsesStructuredGraphError(t *testing.T) {
	body := []byte(`{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`)
	sender := &senderStub{status: http.StatusUnauthorized, body: body}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{Email: "guest@external.com"})
	require.False(t, outcome.OK)
	require.Equal(t, "Access token has expired.", outcome.Error)
}

func TestSendTruncatesUnstructuredErrorText(t *testing.T) {
	sender := &senderStub{status: http.StatusBadGateway, body: []byte(strings.Repeat("x", 500))}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{Email: "guest@external.com"})
	require.False(t, outcome.OK)
	require.Len(t, outcome.Error, 280)
}

func TestSendTruncationKeepsValidUTF8(t *testing.T) {
	// 279 ASCII bytes followed by a three-byte rune straddling the limit.
	body := []byte(strings.Repeat("x", 279) + strings.Repeat("€", 4))
	sender := &senderStub{status: http.StatusBadGateway, body: body}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{Email: "guest@external.com"})
	require.False(t, outcome.OK)
	require.True(t, utf8.ValidString(outcome.Error))
	require.Len(t, outcome.Error, 279)
}

func TestSendTransportFailureIsGeneric(t *testing.T) {
	sender := &senderStub{err: errors.New("dial tcp: connection refused")}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	outcome := svc.Send(context.Background(), models.InviteEntry{Email: "guest@external.com"})
	require.False(t, outcome.OK)
	require.NotContains(t, outcome.Error, "dial tcp")
	require.Empty(t, outcome.Detail)
}

func TestSendBulkIsSequentialAndExhaustive(t *testing.T) {
	var order []string
	sender := &orderedSender{order: &order}
	svc, err := NewInviteService(sender)
	require.NoError(t, err)

	entries := []models.InviteEntry{
		{Email: "first@external.com"},
		{Email: "fails@external.com"},
		{Email: "third@external.com"},
	}

	result := svc.SendBulk(context.Background(), entries)
	require.Equal(t, 3, result.ValidRows)
	require.Equal(t, 2, result.Invited)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "fails@external.com", result.Failures[0].Email)
	require.Equal(t, []string{"first@external.com", "fails@external.com", "third@external.com"}, order)
}

type orderedSender struct {
	order *[]string
}

func (s *orderedSender) CreateInvitation(ctx context.Context, payload map[string]any) (int, []byte, error) {
	email, _ := payload["invitedUserEmailAddress"].(string)
	*s.order = append(*s.order, email)
	if strings.HasPrefix(email, "fails") {
		return http.StatusBadRequest, []byte(`{"message":"rejected"}`), nil
	}
	return http.StatusCreated, []byte(`{}`), nil
}
