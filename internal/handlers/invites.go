package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/entraops/guestgate/internal/middleware"
	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/internal/services"
	appErrors "github.com/entraops/guestgate/pkg/errors"
	"github.com/entraops/guestgate/pkg/logger"
	"github.com/entraops/guestgate/pkg/response"
)

// maxUploadBytes bounds the template file size accepted on bulk uploads.
const maxUploadBytes = 1 << 20

// inviteTemplateCSV is served for download and round-trips through the
// templated bulk parser.
const inviteTemplateCSV = "version 1.0, guest invitation bulk upload\n" +
	"Email address to invite [inviteeEmail] Required,Redirection url [inviteRedirectURL] Required,Send invitation message [sendEmail],Customized invitation message [customizedMessageBody]\n" +
	"Example: guest@external.com,https://myapplications.microsoft.com,true,Welcome to our tenant\n"

type InviteHandler struct {
	bulk    *services.BulkService
	invites *services.InviteService
	log     *zap.Logger
}

func NewInviteHandler(bulk *services.BulkService, invites *services.InviteService) *InviteHandler {
	return &InviteHandler{
		bulk:    bulk,
		invites: invites,
		log:     logger.WithModule("handlers.invites"),
	}
}

type createInviteRequest struct {
	Email           string `json:"email" validate:"required"`
	FirstName       string `json:"firstName" validate:"omitempty,max=40"`
	LastName        string `json:"lastName" validate:"omitempty,max=40"`
	RedirectURL     string `json:"redirectUrl"`
	SendEmail       *bool  `json:"sendEmail"`
	CustomMessage   string `json:"customMessage"`
	ResetRedemption *bool  `json:"resetRedemption"`
}

type bulkInviteRequest struct {
	Text            string `json:"text"`
	Format          string `json:"format" validate:"omitempty,oneof=freeform template"`
	RedirectURL     string `json:"redirectUrl"`
	SendEmail       *bool  `json:"sendEmail"`
	CustomMessage   string `json:"customMessage"`
	ResetRedemption *bool  `json:"resetRedemption"`
}

type singleInviteResponse struct {
	Email   string         `json:"email"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// POST /api/invites
func (h *InviteHandler) Create(c *gin.Context) {
	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	entry, err := h.bulk.NormalizeEntry(services.SingleEntryInput{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		RedirectURL:     req.RedirectURL,
		CustomMessage:   req.CustomMessage,
		SendEmail:       req.SendEmail,
		ResetRedemption: req.ResetRedemption,
	})
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	outcome := h.invites.Send(requestContext(c), entry)
	if !outcome.OK {
		h.log.Warn("invite failed",
			zap.String("email", outcome.Email),
			zap.String("error", outcome.Error),
		)
		response.Error(c, appErrors.New("INVITE_FAILED", outcome.Error, http.StatusBadGateway))
		return
	}

	message := "Invite sent"
	if msg, ok := outcome.Detail["message"].(string); ok && msg != "" {
		message = msg
	}

	response.Success(c, http.StatusOK, singleInviteResponse{
		Email:   outcome.Email,
		Message: message,
		Detail:  outcome.Detail,
	})
}

// POST /api/invites/bulk
func (h *InviteHandler) CreateBulk(c *gin.Context) {
	req, ok := h.bindBulk(c)
	if !ok {
		return
	}

	format := services.Format(req.Format)
	if format == "" {
		format = services.DetectFormat(req.Text)
	}

	var (
		parsed models.ParseResult
		err    error
	)
	switch format {
	case services.FormatTemplate:
		sendDefault := h.bulk.DefaultSendEmail()
		if req.SendEmail != nil {
			sendDefault = *req.SendEmail
		}
		parsed, err = h.bulk.ParseTemplate(req.Text, services.TemplateDefaults{
			SendEmail:       sendDefault,
			ResetRedemption: req.ResetRedemption,
		})
	default:
		parsed, err = h.bulk.ParseFreeForm(req.Text, services.FreeFormDefaults{
			RedirectURL:     req.RedirectURL,
			SendEmail:       req.SendEmail,
			CustomMessage:   req.CustomMessage,
			ResetRedemption: req.ResetRedemption,
		})
	}

	switch {
	case errors.Is(err, services.ErrTooManyRows), errors.Is(err, services.ErrMissingColumns):
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	case err != nil:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if len(parsed.Entries) == 0 {
		reason := "no valid rows in submission"
		if combined := services.CombineRowErrors(parsed.Errors); combined != nil {
			reason = reason + ": " + combined.Error()
		}
		response.Error(c, appErrors.NewBadRequest(reason))
		return
	}

	result := h.invites.SendBulk(requestContext(c), parsed.Entries)
	result.TotalRows = len(parsed.Entries) + len(parsed.Errors)
	result.InvalidRows = len(parsed.Errors)
	result.RowErrors = parsed.Errors

	h.log.Info("bulk invite processed",
		zap.String("format", string(format)),
		zap.Int("invited", result.Invited),
		zap.Int("failed", result.Failed),
		zap.Int("invalid_rows", result.InvalidRows),
	)

	response.Success(c, http.StatusOK, result)
}

// GET /api/invites/template
func (h *InviteHandler) Template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="guest-invite-template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(inviteTemplateCSV))
}

// GET /api/me
func (h *InviteHandler) Me(c *gin.Context) {
	decision := middleware.DecisionFrom(c)
	if decision == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, decision)
}

// bindBulk accepts either a JSON body or a multipart upload carrying the
// template file under the "file" field.
func (h *InviteHandler) bindBulk(c *gin.Context) (bulkInviteRequest, bool) {
	var req bulkInviteRequest

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("file field is required for uploads"))
			return req, false
		}

		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("could not read uploaded file"))
			return req, false
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("could not read uploaded file"))
			return req, false
		}

		req.Text = string(data)
		req.Format = c.PostForm("format")
		req.RedirectURL = c.PostForm("redirectUrl")
		req.CustomMessage = c.PostForm("customMessage")
		if v := c.PostForm("sendEmail"); v != "" {
			req.SendEmail = models.Bool(strings.EqualFold(v, "true"))
		}
		if v := c.PostForm("resetRedemption"); v != "" {
			req.ResetRedemption = models.Bool(strings.EqualFold(v, "true"))
		}
	} else if !bindAndValidate(c, &req) {
		return req, false
	}

	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, appErrors.NewBadRequest("no rows submitted"))
		return req, false
	}
	return req, true
}
