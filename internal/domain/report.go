package domain

import (
	"fmt"
	"time"
)

// ContentType is the flavour of an analysis request.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
)

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentImage, ContentAudio:
		return true
	default:
		return false
	}
}

// AnalysisInput is what a caller submits for analysis.
type AnalysisInput struct {
	// Text is the extracted page text.
	Text string `json:"text"`

	// URL is the page URL, used for the domain trust signal.
	URL string `json:"url,omitempty"`

	// ImageURL points to an image to run through the image model.
	ImageURL string `json:"image_url,omitempty"`

	// AudioURL points to an audio clip to run through the audio model.
	AudioURL string `json:"audio_url,omitempty"`

	// ContentType selects which input is primary. The zero value means text.
	ContentType ContentType `json:"content_type,omitempty"`
}

// Type returns the content type, defaulting to text.
func (in AnalysisInput) Type() ContentType {
	if in.ContentType == "" {
		return ContentText
	}
	return in.ContentType
}

// EvidenceItem is one supporting or refuting source.
type EvidenceItem struct {
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	// Rating is the publisher's verdict when the source is a fact check.
	Rating string `json:"rating,omitempty"`
}

// EvidenceMode records where an evidence list came from, so fabricated or
// missing evidence is never presented as real.
type EvidenceMode string

const (
	// EvidenceFound means a real search backend returned results.
	EvidenceFound EvidenceMode = "found"
	// EvidenceNone means a real search backend returned nothing.
	EvidenceNone EvidenceMode = "none"
	// EvidenceUnavailable means no search was possible.
	EvidenceUnavailable EvidenceMode = "unavailable"
	// EvidenceSimulated means the items are sample data, not search results.
	EvidenceSimulated EvidenceMode = "simulated"
)

// EvidenceResult is the outcome of an evidence search.
type EvidenceResult struct {
	Mode  EvidenceMode   `json:"mode"`
	Items []EvidenceItem `json:"items"`
}

// Report packages one analysis. It is created once per request and never
// modified afterwards.
type Report struct {
	// ID uniquely identifies this report (a UUID).
	ID string `json:"id"`

	// ContentType is the flavour of the request that produced the report.
	ContentType ContentType `json:"content_type"`

	// Input is the request as submitted.
	Input AnalysisInput `json:"input"`

	// Result is the aggregation outcome.
	Result AggregateResult `json:"result"`

	// Evidence is ordered by the evidence provider's relevance.
	Evidence []EvidenceItem `json:"evidence"`

	// EvidenceMode records the provenance of Evidence.
	EvidenceMode EvidenceMode `json:"evidence_mode"`

	// Explanation is a human readable summary of the result.
	Explanation string `json:"explanation"`

	// CreatedAt is when the report was built, in UTC.
	CreatedAt time.Time `json:"created_at"`
}

// FlagType is the kind of feedback a user leaves on a report.
type FlagType string

const (
	FlagIncorrect  FlagType = "incorrect"
	FlagMisleading FlagType = "misleading"
	FlagHelpful    FlagType = "helpful"
	FlagOther      FlagType = "other"
)

// Valid reports whether t is a known flag type.
func (t FlagType) Valid() bool {
	switch t {
	case FlagIncorrect, FlagMisleading, FlagHelpful, FlagOther:
		return true
	default:
		return false
	}
}

// MaxFlagCommentLength bounds the free-form comment of a flag.
const MaxFlagCommentLength = 1000

// Flag is user feedback attached to a report. Flags never change the
// report they refer to.
type Flag struct {
	ReportID  string    `json:"report_id"`
	Type      FlagType  `json:"flag_type"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the flag type and comment length.
func (f Flag) Validate() error {
	verr := NewValidationError("flag")
	if !f.Type.Valid() {
		verr.AddError(fmt.Sprintf("unknown flag type %q", f.Type))
	}
	if len(f.Comment) > MaxFlagCommentLength {
		verr.AddError(fmt.Sprintf("comment exceeds %d characters", MaxFlagCommentLength))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
