package services

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/entraops/guestgate/internal/graph"
	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/pkg/logger"
	"github.com/entraops/guestgate/pkg/metrics"
)

// Directory is the read-only subset of the Graph client the authorization
// decision consumes.
type Directory interface {
	User(ctx context.Context, objectID string) (*models.CallerIdentity, error)
	CheckMemberGroups(ctx context.Context, objectID string, groupIDs []string) ([]string, error)
}

// AuthzConfig is the process-wide invitation policy, read-only after startup.
type AuthzConfig struct {
	// ManagedEnvironment is true when running inside the managed hosting
	// platform, where the perimeter supplies validated caller assertions.
	ManagedEnvironment bool
	// LocalBypass authorizes anonymous invites outside the managed
	// environment, for local development only.
	LocalBypass bool
	// EnforceGroups requires allow-list membership in the managed environment.
	EnforceGroups bool
	// AllowedGroupIDs is the directory group allow-list gating who may invite.
	AllowedGroupIDs []string
}

// AuthzService decides, once per inbound request, whether the caller may
// issue invitations.
type AuthzService struct {
	directory Directory
	cfg       AuthzConfig
	log       *zap.Logger
}

// NewAuthzService constructs the authorization decision procedure.
func NewAuthzService(directory Directory, cfg AuthzConfig) *AuthzService {
	return &AuthzService{
		directory: directory,
		cfg:       cfg,
		log:       logger.WithModule("authz"),
	}
}

// Authorize evaluates the decision procedure for one request. Denials carry a
// fixed reason and HTTP status; a transient directory failure returns an
// error instead of a denial and is never retried here.
func (s *AuthzService) Authorize(ctx context.Context, principal *models.ClientPrincipal) (*models.AuthorizationDecision, error) {
	decision, err := s.decide(ctx, principal)
	switch {
	case err != nil:
		metrics.AuthzDecisions.WithLabelValues("", "error").Inc()
	case decision.Authorized:
		metrics.AuthzDecisions.WithLabelValues(decision.Mode, "allow").Inc()
	default:
		metrics.AuthzDecisions.WithLabelValues(decision.Mode, "deny").Inc()
		s.log.Info("invite denied",
			zap.String("reason", decision.Reason),
			zap.Int("status", decision.Status),
		)
	}
	return decision, err
}

func (s *AuthzService) decide(ctx context.Context, principal *models.ClientPrincipal) (*models.AuthorizationDecision, error) {
	if !s.cfg.ManagedEnvironment && s.cfg.LocalBypass {
		return &models.AuthorizationDecision{
			Authorized: true,
			Mode:       models.ModeLocalBypass,
			Caller: &models.CallerIdentity{
				ID:                "local-dev",
				UserType:          "Member",
				AccountEnabled:    true,
				DisplayName:       "Local development user",
				UserPrincipalName: "local-dev@localhost",
			},
		}, nil
	}

	if principal == nil {
		return deny(http.StatusUnauthorized, "Sign-in required"), nil
	}

	objectID := principal.ObjectID()
	if objectID == "" {
		return deny(http.StatusUnauthorized, "Caller identity has no object identifier"), nil
	}

	caller, err := s.directory.User(ctx, objectID)
	if errors.Is(err, graph.ErrUserNotFound) {
		return deny(http.StatusForbidden, "Caller not found in directory"), nil
	}
	if err != nil {
		return nil, err
	}
	if !caller.AccountEnabled {
		return deny(http.StatusForbidden, "Caller account is disabled"), nil
	}

	if caller.UserType != "Member" {
		return deny(http.StatusForbidden, "Guest accounts may not send invitations"), nil
	}

	if s.cfg.ManagedEnvironment && s.cfg.EnforceGroups && len(s.cfg.AllowedGroupIDs) == 0 {
		// Fail closed on misconfiguration rather than open the gate.
		return deny(http.StatusInternalServerError, "Invitation policy is not configured"), nil
	}

	if len(s.cfg.AllowedGroupIDs) > 0 && (!s.cfg.ManagedEnvironment || s.cfg.EnforceGroups) {
		matched, err := s.directory.CheckMemberGroups(ctx, objectID, s.cfg.AllowedGroupIDs)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return deny(http.StatusForbidden, "Caller is not a member of an allowed group"), nil
		}
	}

	return &models.AuthorizationDecision{
		Authorized: true,
		Mode:       models.ModeEntraAuthenticated,
		Caller:     caller,
	}, nil
}

func deny(status int, reason string) *models.AuthorizationDecision {
	return &models.AuthorizationDecision{
		Authorized: false,
		Status:     status,
		Reason:     reason,
	}
}
