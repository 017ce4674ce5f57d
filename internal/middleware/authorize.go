package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entraops/guestgate/internal/models"
	appErrors "github.com/entraops/guestgate/pkg/errors"
	"github.com/entraops/guestgate/pkg/response"
)

// Authorizer decides whether the decoded caller may issue invitations.
type Authorizer interface {
	Authorize(ctx context.Context, principal *models.ClientPrincipal) (*models.AuthorizationDecision, error)
}

// RequireInviter evaluates the authorization decision for each request and
// aborts denials with the decision's status and reason. Transient directory
// failures surface as upstream errors, not denials.
func RequireInviter(authz Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := authz.Authorize(c.Request.Context(), PrincipalFrom(c))
		if err != nil {
			response.Error(c, appErrors.ErrUpstream.WithInternal(err))
			c.Abort()
			return
		}

		if !decision.Authorized {
			response.Error(c, appErrors.New(codeForStatus(decision.Status), decision.Reason, decision.Status))
			c.Abort()
			return
		}

		c.Set(CtxDecisionKey, decision)
		if decision.Caller != nil {
			c.Set(CtxCallerKey, decision.Caller)
		}
		c.Next()
	}
}

// DecisionFrom returns the authorization decision stored on the context, or nil.
func DecisionFrom(c *gin.Context) *models.AuthorizationDecision {
	v, ok := c.Get(CtxDecisionKey)
	if !ok {
		return nil
	}
	d, _ := v.(*models.AuthorizationDecision)
	return d
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return appErrors.ErrUnauthorized.Code
	case http.StatusForbidden:
		return appErrors.ErrForbidden.Code
	case http.StatusInternalServerError:
		return appErrors.ErrMisconfigured.Code
	default:
		return appErrors.ErrForbidden.Code
	}
}
