// Package graph is a minimal Microsoft Graph client covering the three
// operations the invitation flow needs: reading a user profile, checking
// group membership, and creating a guest invitation.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/pkg/logger"
	"github.com/entraops/guestgate/pkg/metrics"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	defaultScope   = "https://graph.microsoft.com/.default"

	// Graph rejects checkMemberGroups calls with more than 20 group IDs.
	checkMemberGroupsChunk = 20
)

// ErrUserNotFound indicates the directory has no user for the given object ID.
var ErrUserNotFound = errors.New("graph: user not found")

// Config holds the app-only credentials used to acquire Graph tokens.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	Scope        string
}

// Client issues authenticated Graph requests. The underlying oauth2
// transport caches and refreshes the app token, so a single Client is safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

// New constructs a Client that authenticates via the client-credentials grant.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, errors.New("graph: tenant_id is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("graph: client credentials are required")
	}

	scope := cfg.Scope
	if scope == "" {
		scope = defaultScope
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID)),
		Scopes:       []string{scope},
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: cc.Client(context.Background()),
		baseURL:    baseURL,
		log:        logger.WithModule("graph"),
	}, nil
}

// NewWithHTTPClient builds a Client against an arbitrary base URL and HTTP
// client, bypassing token acquisition. Tests point this at httptest servers.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        logger.WithModule("graph"),
	}
}

// User fetches the directory profile for the given object ID.
func (c *Client) User(ctx context.Context, objectID string) (*models.CallerIdentity, error) {
	endpoint := fmt.Sprintf("%s/users/%s?$select=id,userType,accountEnabled,displayName,userPrincipalName",
		c.baseURL, url.PathEscape(objectID))

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil, "get_user")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("graph: get user: status %d: %s", status, truncate(body, 200))
	}

	var identity models.CallerIdentity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("graph: decode user: %w", err)
	}
	return &identity, nil
}

// CheckMemberGroups returns the subset of groupIDs the user belongs to,
// chunking requests to stay inside the Graph per-call limit.
func (c *Client) CheckMemberGroups(ctx context.Context, objectID string, groupIDs []string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/checkMemberGroups", c.baseURL, url.PathEscape(objectID))

	var matched []string
	for start := 0; start < len(groupIDs); start += checkMemberGroupsChunk {
		end := start + checkMemberGroupsChunk
		if end > len(groupIDs) {
			end = len(groupIDs)
		}

		payload, err := json.Marshal(map[string]any{"groupIds": groupIDs[start:end]})
		if err != nil {
			return nil, fmt.Errorf("graph: encode group check: %w", err)
		}

		status, body, err := c.do(ctx, http.MethodPost, endpoint, payload, "check_member_groups")
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("graph: check member groups: status %d: %s", status, truncate(body, 200))
		}

		var result struct {
			Value []string `json:"value"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("graph: decode group check: %w", err)
		}
		matched = append(matched, result.Value...)
	}

	return matched, nil
}

// CreateInvitation posts the invitation payload and returns the upstream
// status and raw body. Classification of non-2xx responses is left to the
// caller so it can apply its own field filtering.
func (c *Client) CreateInvitation(ctx context.Context, payload map[string]any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("graph: encode invitation: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.baseURL+"/invitations", body, "create_invitation")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, operation string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("graph: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.NewString()
	req.Header.Set("client-request-id", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.GraphLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("graph call failed",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return 0, nil, fmt.Errorf("graph: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("graph: read response: %w", err)
	}

	return resp.StatusCode, data, nil
}

func truncate(b []byte, max int) string {
	s := string(b)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
