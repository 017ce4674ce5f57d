package services

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/entraops/guestgate/internal/models"
	"github.com/entraops/guestgate/pkg/csvline"
	"github.com/entraops/guestgate/pkg/metrics"
)

const (
	defaultRowCap  = 100
	defaultNameCap = 40

	// Template layout: line 1 is a version/description row, line 2 carries the
	// bracketed column headers, data starts on line 3.
	headerEmail       = "[inviteeEmail]"
	headerRedirectURL = "[inviteRedirectURL]"
	headerSendEmail   = "[sendEmail]"
	headerMessageBody = "[customizedMessageBody]"

	// Placeholder rows shipped with the template keep this prefix in the email
	// column and are skipped silently.
	examplePrefix = "Example:"
)

// Format selects which bulk parser handles a submission.
type Format string

const (
	FormatFreeForm Format = "freeform"
	FormatTemplate Format = "template"
)

// DetectFormat sniffs the first two lines for bracketed template headers and
// dispatches to the matching parser.
func DetectFormat(text string) Format {
	lines := splitLines(text)
	for i := 0; i < len(lines) && i < 2; i++ {
		if strings.Contains(lines[i], headerEmail) || strings.Contains(lines[i], headerRedirectURL) {
			return FormatTemplate
		}
	}
	return FormatFreeForm
}

// BulkConfig tunes the normalizer. Zero values fall back to the fixed caps
// from configuration defaults.
type BulkConfig struct {
	RowCap             int
	NameCap            int
	DefaultRedirectURL string
	DefaultSendEmail   bool
}

// BulkService normalizes bulk submissions into invite entries plus row-level
// errors. It holds no per-request state.
type BulkService struct {
	cfg BulkConfig
}

// NewBulkService constructs a BulkService, applying default caps.
func NewBulkService(cfg BulkConfig) *BulkService {
	if cfg.RowCap <= 0 {
		cfg.RowCap = defaultRowCap
	}
	if cfg.NameCap <= 0 {
		cfg.NameCap = defaultNameCap
	}
	return &BulkService{cfg: cfg}
}

// RowCap exposes the configured batch limit.
func (s *BulkService) RowCap() int { return s.cfg.RowCap }

// DefaultSendEmail exposes the configured fallback for the send-email flag.
func (s *BulkService) DefaultSendEmail() bool { return s.cfg.DefaultSendEmail }

// SingleEntryInput is a manually entered invitation before normalization.
type SingleEntryInput struct {
	Email           string
	FirstName       string
	LastName        string
	RedirectURL     string
	CustomMessage   string
	SendEmail       *bool
	ResetRedemption *bool
}

// NormalizeEntry validates and normalizes one manual submission the same way
// a bulk row is treated: email lowercased and shape-checked, names collapsed
// and capped, redirect URL defaulted then validated.
func (s *BulkService) NormalizeEntry(in SingleEntryInput) (models.InviteEntry, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !validEmail(email) {
		return models.InviteEntry{}, ErrInvalidEmail
	}

	redirect := strings.TrimSpace(in.RedirectURL)
	if redirect == "" {
		redirect = s.cfg.DefaultRedirectURL
	}
	if !validRedirectURL(redirect) {
		return models.InviteEntry{}, ErrInvalidRedirectURL
	}

	first := collapseName(in.FirstName, s.cfg.NameCap)
	last := collapseName(in.LastName, s.cfg.NameCap)

	return models.InviteEntry{
		Email:           email,
		FirstName:       first,
		LastName:        last,
		DisplayName:     strings.TrimSpace(first + " " + last),
		RedirectURL:     redirect,
		SendEmail:       in.SendEmail,
		CustomMessage:   strings.TrimSpace(in.CustomMessage),
		ResetRedemption: in.ResetRedemption,
	}, nil
}

// FreeFormDefaults carries the form-level choices applied to every entry
// parsed from free-form text.
type FreeFormDefaults struct {
	RedirectURL     string
	SendEmail       *bool
	CustomMessage   string
	ResetRedemption *bool
}

// ParseFreeForm normalizes raw multi-line text where each non-blank line is
// up to three comma-separated fields: email, first name, last name. Rows with
// an invalid email produce one error each; processing never stops early.
func (s *BulkService) ParseFreeForm(text string, defaults FreeFormDefaults) (models.ParseResult, error) {
	redirect := defaults.RedirectURL
	if redirect == "" {
		redirect = s.cfg.DefaultRedirectURL
	}

	var result models.ParseResult
	for i, line := range splitLines(text) {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := csvline.Split(line)
		email := strings.ToLower(strings.TrimSpace(fields[0]))
		if !validEmail(email) {
			result.Errors = append(result.Errors, models.RowError{Line: lineNo, Reason: "invalid email"})
			metrics.BulkRows.WithLabelValues("invalid").Inc()
			continue
		}

		var first, last string
		if len(fields) > 1 {
			first = collapseName(fields[1], s.cfg.NameCap)
		}
		if len(fields) > 2 {
			last = collapseName(fields[2], s.cfg.NameCap)
		}

		result.Entries = append(result.Entries, models.InviteEntry{
			Email:           email,
			FirstName:       first,
			LastName:        last,
			DisplayName:     strings.TrimSpace(first + " " + last),
			RedirectURL:     redirect,
			SendEmail:       defaults.SendEmail,
			CustomMessage:   defaults.CustomMessage,
			ResetRedemption: defaults.ResetRedemption,
		})
		metrics.BulkRows.WithLabelValues("valid").Inc()
	}

	if err := s.checkCap(len(result.Entries)); err != nil {
		return models.ParseResult{}, err
	}
	return result, nil
}

// TemplateDefaults carries the caller-level choices for templated uploads.
// ResetRedemption is the current form flag and overrides anything row-level
// uniformly; the file never supplies it.
type TemplateDefaults struct {
	SendEmail       bool
	ResetRedemption *bool
}

// ParseTemplate normalizes a templated CSV export. A missing required header
// fails the whole file with a single error; per-row problems are collected
// and skipped. Placeholder and blank-email rows are dropped silently.
func (s *BulkService) ParseTemplate(text string, defaults TemplateDefaults) (models.ParseResult, error) {
	text = strings.TrimPrefix(text, "\uFEFF")
	lines := splitLines(text)

	var headers []string
	if len(lines) >= 2 {
		headers = csvline.Split(lines[1])
	}

	emailIdx := headerIndex(headers, headerEmail)
	redirectIdx := headerIndex(headers, headerRedirectURL)
	sendIdx := headerIndex(headers, headerSendEmail)
	msgIdx := headerIndex(headers, headerMessageBody)

	var missing []string
	if emailIdx < 0 {
		missing = append(missing, headerEmail)
	}
	if redirectIdx < 0 {
		missing = append(missing, headerRedirectURL)
	}
	if len(missing) > 0 {
		return models.ParseResult{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var result models.ParseResult
	for i := 2; i < len(lines); i++ {
		lineNo := i + 1
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}

		fields := csvline.Split(lines[i])
		rawEmail := cell(fields, emailIdx)
		if rawEmail == "" || strings.HasPrefix(rawEmail, examplePrefix) {
			// Template boilerplate, not data.
			metrics.BulkRows.WithLabelValues("skipped").Inc()
			continue
		}

		email := strings.ToLower(rawEmail)
		if !validEmail(email) {
			result.Errors = append(result.Errors, models.RowError{Line: lineNo, Reason: "invalid email"})
			metrics.BulkRows.WithLabelValues("invalid").Inc()
			continue
		}

		redirect := cell(fields, redirectIdx)
		if !validRedirectURL(redirect) {
			result.Errors = append(result.Errors, models.RowError{Line: lineNo, Reason: "invalid redirect URL"})
			metrics.BulkRows.WithLabelValues("invalid").Inc()
			continue
		}

		sendEmail := parseBoolDefault(cell(fields, sendIdx), defaults.SendEmail)

		result.Entries = append(result.Entries, models.InviteEntry{
			Email:           email,
			RedirectURL:     redirect,
			SendEmail:       models.Bool(sendEmail),
			CustomMessage:   cell(fields, msgIdx),
			ResetRedemption: defaults.ResetRedemption,
		})
		metrics.BulkRows.WithLabelValues("valid").Inc()
	}

	if err := s.checkCap(len(result.Entries)); err != nil {
		return models.ParseResult{}, err
	}
	return result, nil
}

func (s *BulkService) checkCap(entries int) error {
	if entries > s.cfg.RowCap {
		return fmt.Errorf("%w: %d entries over the %d row limit", ErrTooManyRows, entries, s.cfg.RowCap)
	}
	return nil
}

// CombineRowErrors folds row-level failures into a single error value for
// logging and terminal responses.
func CombineRowErrors(rowErrors []models.RowError) error {
	var combined error
	for _, re := range rowErrors {
		combined = multierr.Append(combined, fmt.Errorf("Line %d: %s", re.Line, re.Reason))
	}
	return combined
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func headerIndex(headers []string, name string) int {
	for i, h := range headers {
		if strings.Contains(h, name) {
			return i
		}
	}
	return -1
}

func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}
