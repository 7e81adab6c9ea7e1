package application

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/internal/domain"
)

// TestValidateInput tests the request checks that run before any provider.
func TestValidateInput(t *testing.T) {
	limits := DefaultInputLimits()

	tests := []struct {
		name    string
		input   domain.AnalysisInput
		wantErr bool
		errMsg  string
	}{
		{name: "valid text", input: domain.AnalysisInput{Text: "Scientists confirm Earth is flat"}},
		{
			name:  "valid text with source",
			input: domain.AnalysisInput{Text: "Scientists confirm Earth is flat", URL: "https://www.nasa.gov/a"},
		},
		{name: "exactly the minimum", input: domain.AnalysisInput{Text: "0123456789"}},
		{name: "text too short", input: domain.AnalysisInput{Text: "short"}, wantErr: true, errMsg: "at least 10"},
		{
			name:    "padding does not count",
			input:   domain.AnalysisInput{Text: "   short      "},
			wantErr: true,
			errMsg:  "at least 10",
		},
		{
			name:  "runes not bytes",
			input: domain.AnalysisInput{Text: "ééééééééééé"},
		},
		{
			name:    "text too long",
			input:   domain.AnalysisInput{Text: strings.Repeat("a", 50001)},
			wantErr: true,
			errMsg:  "exceeds 50000",
		},
		{
			name:    "relative url",
			input:   domain.AnalysisInput{Text: "Scientists confirm Earth is flat", URL: "/news/a"},
			wantErr: true,
			errMsg:  "url must be",
		},
		{
			name:    "non web scheme",
			input:   domain.AnalysisInput{Text: "Scientists confirm Earth is flat", URL: "javascript:alert(1)"},
			wantErr: true,
		},
		{
			name:  "image with media url and no text",
			input: domain.AnalysisInput{ContentType: domain.ContentImage, ImageURL: "https://cdn.example/p.jpg"},
		},
		{
			name:    "image without media url",
			input:   domain.AnalysisInput{ContentType: domain.ContentImage, Text: "caption"},
			wantErr: true,
			errMsg:  "image_url is required",
		},
		{
			name:    "audio without media url",
			input:   domain.AnalysisInput{ContentType: domain.ContentAudio},
			wantErr: true,
			errMsg:  "audio_url is required",
		},
		{
			name:    "bad audio url",
			input:   domain.AnalysisInput{ContentType: domain.ContentAudio, AudioURL: "file:///etc/passwd"},
			wantErr: true,
			errMsg:  "audio_url must be",
		},
		{
			name:    "unknown content type",
			input:   domain.AnalysisInput{ContentType: "video", Text: "Scientists confirm Earth is flat"},
			wantErr: true,
			errMsg:  "unknown content type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input, limits)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateInput_CollectsEveryProblem(t *testing.T) {
	err := ValidateInput(domain.AnalysisInput{Text: "x", URL: "nope"}, DefaultInputLimits())
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
}

func TestRegisterInputValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterInputValidators(v))

	type page struct {
		URL string `validate:"required,webpage"`
	}
	assert.NoError(t, v.Struct(page{URL: "http://example.com"}))
	assert.Error(t, v.Struct(page{URL: "http://"}))
	assert.Error(t, v.Struct(page{URL: "mailto:a@example.com"}))
	assert.Error(t, v.Struct(page{}))
}
