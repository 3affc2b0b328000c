package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
)

var (
	urlRegex = regexp.MustCompile(`^(https?://)([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(/.*)?$`)
)

// Content longer than this is rejected before it reaches the backend.
const maxContentLength = 200_000

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateURL checks that rawURL is a full http(s) URL with a dotted host.
func ValidateURL(rawURL, fieldName string) error {
	rawURL = SanitizeString(rawURL)
	if rawURL == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	if !urlRegex.MatchString(rawURL) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a full URL starting with http:// or https://",
		}
	}

	return nil
}

// ValidateContent checks pasted offer text.
func ValidateContent(content string) error {
	content = SanitizeString(content)
	if content == "" {
		return &ValidationError{
			Field:   "content",
			Message: "is required for manual mode",
		}
	}

	if len(content) > maxContentLength {
		return &ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("cannot exceed %d characters", maxContentLength),
		}
	}

	return nil
}

// ValidateCreateRequest checks a new offer submission: exactly one of url or
// content, and a well formed original url when one accompanies content.
func ValidateCreateRequest(req models.CreateOfferRequest) error {
	hasURL := SanitizeString(req.URL) != ""
	hasContent := SanitizeString(req.Content) != ""

	switch {
	case hasURL && hasContent:
		return &ValidationError{
			Field:   "url",
			Message: "cannot be combined with content",
		}
	case hasURL:
		return ValidateURL(req.URL, "url")
	case hasContent:
		if err := ValidateContent(req.Content); err != nil {
			return err
		}
		if SanitizeString(req.OriginalURL) != "" {
			return ValidateURL(req.OriginalURL, "original_url")
		}
		return nil
	default:
		return &ValidationError{
			Field:   "url",
			Message: "either url or content is required",
		}
	}
}

// ValidateField checks that field names an extracted detail.
func ValidateField(field string) error {
	if field == "" {
		return &ValidationError{
			Field:   "field",
			Message: "is required",
		}
	}

	if !models.IsDetailField(field) {
		return &ValidationError{
			Field:   "field",
			Message: fmt.Sprintf("unknown field: %s", field),
		}
	}

	return nil
}

// ValidateStatusKey parses a user progress key.
func ValidateStatusKey(s string) (offerstate.StatusKey, error) {
	key, ok := offerstate.ParseStatusKey(SanitizeString(s))
	if !ok {
		return "", &ValidationError{
			Field:   "status",
			Message: "must be one of unopened, opened, deposited, received",
		}
	}
	return key, nil
}

// ValidatePlanRequest checks planning inputs against the planner's limits.
func ValidatePlanRequest(req models.PlanRequest) error {
	if req.PayCycleDays < 7 || req.PayCycleDays > 31 {
		return &ValidationError{
			Field:   "pay_cycle_days",
			Message: "must be between 7 and 31",
		}
	}

	if req.AveragePaycheck < 100 {
		return &ValidationError{
			Field:   "average_paycheck",
			Message: "must be at least $100",
		}
	}

	if req.AccountsPerPaycycle < 1 || req.AccountsPerPaycycle > 10 {
		return &ValidationError{
			Field:   "accounts_per_paycycle",
			Message: "must be between 1 and 10",
		}
	}

	return nil
}

// ParseOfferID parses a positive offer id from a path or query value.
func ParseOfferID(s string) (int, error) {
	s = SanitizeString(s)
	if s == "" {
		return 0, &ValidationError{
			Field:   "id",
			Message: "is required",
		}
	}

	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, &ValidationError{
			Field:   "id",
			Message: "must be a positive integer",
		}
	}

	return id, nil
}
