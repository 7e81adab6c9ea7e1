package application

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-verity/internal/domain"
)

// InputLimits bounds the text of an analysis request, counted in runes
// after trimming surrounding whitespace.
type InputLimits struct {
	MinTextLength int
	MaxTextLength int
}

// DefaultInputLimits returns the limits used when none are configured.
func DefaultInputLimits() InputLimits {
	return InputLimits{MinTextLength: 10, MaxTextLength: 50000}
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterInputValidators(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterInputValidators adds the webpage tag, which accepts absolute
// http and https URLs that name a host.
// RegisterInputValidators returns an error if any validator registration
// fails.
func RegisterInputValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("webpage", validateWebpage); err != nil {
		return fmt.Errorf("failed to register webpage validator: %w", err)
	}
	return nil
}

// validateWebpage is a validator.Func for the webpage tag. Empty values
// pass; combine with required when the URL is mandatory.
func validateWebpage(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

// ValidateInput checks an analysis request before any provider runs.
// Text content needs between limits.MinTextLength and
// limits.MaxTextLength characters of trimmed text; image and audio
// content need their media URL and accept optional text up to the
// maximum. Every URL must be an absolute http(s) URL with a host.
// ValidateInput returns a *domain.ValidationError matching
// domain.ErrInvalidInput that lists every problem found.
func ValidateInput(in domain.AnalysisInput, limits InputLimits) error {
	verr := domain.NewValidationError("analysis input")

	ct := in.Type()
	if !ct.Valid() {
		verr.AddError(fmt.Sprintf("unknown content type %q", in.ContentType))
	}

	n := utf8.RuneCountInString(strings.TrimSpace(in.Text))
	if ct == domain.ContentText && n < limits.MinTextLength {
		verr.AddError(fmt.Sprintf("text must be at least %d characters", limits.MinTextLength))
	}
	if limits.MaxTextLength > 0 && n > limits.MaxTextLength {
		verr.AddError(fmt.Sprintf("text exceeds %d characters", limits.MaxTextLength))
	}

	urls := []struct {
		field    string
		value    string
		required bool
	}{
		{"url", in.URL, false},
		{"image_url", in.ImageURL, ct == domain.ContentImage},
		{"audio_url", in.AudioURL, ct == domain.ContentAudio},
	}
	for _, u := range urls {
		if strings.TrimSpace(u.value) == "" {
			if u.required {
				verr.AddError(fmt.Sprintf("%s is required for %s content", u.field, ct))
			}
			continue
		}
		if err := inputValidator.Var(u.value, "webpage"); err != nil {
			verr.AddError(fmt.Sprintf("%s must be an absolute http(s) URL", u.field))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
