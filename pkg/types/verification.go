// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how deep the remote verification goes.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

// DefaultLanguage is the language code sent when none is given.
const DefaultLanguage = "en"

// RequestKind names the submission shape a request needs. Image presence
// alone decides it.
type RequestKind string

const (
	KindNone  RequestKind = "none"
	KindText  RequestKind = "text"
	KindImage RequestKind = "image"
)

// Image is a binary attachment with its declared content type.
type Image struct {
	Data        []byte `json:"data" yaml:"-"`
	ContentType string `json:"content_type" yaml:"content_type"`

	// Filename is sent as the multipart filename. Empty means derive one
	// from the content type.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// VerificationRequest is a claim to verify. Build it with
// NewVerificationRequest and treat it as read-only afterwards; use Clone to
// hand a copy to code that keeps it.
type VerificationRequest struct {
	// ID identifies the request across retries and queue replays.
	ID string `json:"id" yaml:"id"`

	// Text is the trimmed claim text. May be empty when Image is set.
	Text string `json:"text" yaml:"text"`

	// Image is the optional attachment.
	Image *Image `json:"image,omitempty" yaml:"image,omitempty"`

	Mode     Mode   `json:"mode" yaml:"mode"`
	Language string `json:"language" yaml:"language"`

	// SharedImageRef is the shared-payload cache key the image came from,
	// if it was handed over by a share action.
	SharedImageRef string `json:"shared_image_ref,omitempty" yaml:"shared_image_ref,omitempty"`
}

// ValidationError reports a request that must not be submitted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid verification request: " + e.Reason
}

// NewVerificationRequest trims and validates its inputs and returns a
// request that owns a private copy of the image bytes. An empty mode
// becomes ModeFast and an empty language DefaultLanguage.
func NewVerificationRequest(text string, img *Image, mode Mode, language string) (*VerificationRequest, error) {
	req := &VerificationRequest{
		ID:       uuid.NewString(),
		Text:     strings.TrimSpace(text),
		Mode:     mode,
		Language: strings.TrimSpace(language),
	}
	if req.Mode == "" {
		req.Mode = ModeFast
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	if img != nil && len(img.Data) > 0 {
		req.Image = img.clone()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the request invariants: some text or a non-empty image,
// and a known mode.
func (r *VerificationRequest) Validate() error {
	if r == nil {
		return &ValidationError{Reason: "no request"}
	}
	if r.Text == "" && !r.HasImage() {
		return &ValidationError{Reason: "enter a claim or attach an image"}
	}
	switch r.Mode {
	case ModeFast, ModeDeep:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown mode %q", r.Mode)}
	}
	return nil
}

// HasImage reports whether a non-empty image is attached.
func (r *VerificationRequest) HasImage() bool {
	return r.Image != nil && len(r.Image.Data) > 0
}

// Kind returns KindImage when an image is attached and KindText otherwise.
func (r *VerificationRequest) Kind() RequestKind {
	if r == nil {
		return KindNone
	}
	if r.HasImage() {
		return KindImage
	}
	return KindText
}

// Clone returns a deep copy.
func (r *VerificationRequest) Clone() *VerificationRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Image = r.Image.clone()
	return &c
}

func (img *Image) clone() *Image {
	if img == nil {
		return nil
	}
	c := *img
	c.Data = append([]byte(nil), img.Data...)
	return &c
}

// Verdict is the outcome of a remote fact-check.
type Verdict string

const (
	VerdictTrue       Verdict = "true"
	VerdictFalse      Verdict = "false"
	VerdictMisleading Verdict = "misleading"
	VerdictUnverified Verdict = "unverified"
	VerdictUnknown    Verdict = "unknown"
)

// ParseVerdict maps a backend verdict string onto the known set. Anything
// unrecognised is VerdictUnknown.
func ParseVerdict(s string) Verdict {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(s))); v {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictUnverified:
		return v
	default:
		return VerdictUnknown
	}
}

// Display returns the upper-case label shown to users, "N/A" for unknown.
func (v Verdict) Display() string {
	if v == VerdictUnknown || v == "" {
		return "N/A"
	}
	return strings.ToUpper(string(v))
}

// NoExplanation is the explanation used when the backend sends none.
const NoExplanation = "No explanation provided"

// Citation is one source backing a verdict.
type Citation struct {
	Title     string `json:"title" yaml:"title"`
	URL       string `json:"url" yaml:"url"`
	Publisher string `json:"publisher" yaml:"publisher"`

	// Rating is the fact-checker's textual rating, e.g. "False".
	Rating string `json:"rating,omitempty" yaml:"rating,omitempty"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
}

// Metrics carries the cost and latency figures reported for a verification.
type Metrics struct {
	LatencyMS float64 `json:"latency_ms" yaml:"latency_ms"`
	CostUSD   float64 `json:"cost_usd" yaml:"cost_usd"`
}

// VerificationResult is a parsed backend response with defaults applied.
type VerificationResult struct {
	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// RawVerdict keeps the backend string when it was not a known verdict.
	RawVerdict string `json:"raw_verdict,omitempty" yaml:"raw_verdict,omitempty"`

	// Confidence is clamped to [0, 1].
	Confidence  float64    `json:"confidence" yaml:"confidence"`
	Explanation string     `json:"explanation" yaml:"explanation"`
	Citations   []Citation `json:"citations" yaml:"citations"`

	RequestID string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	KeyFacts  []string  `json:"key_facts,omitempty" yaml:"key_facts,omitempty"`
	Reasoning string    `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Language  string    `json:"language,omitempty" yaml:"language,omitempty"`
	Mode      Mode      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`

	// ClientLatency is the round trip measured by this client.
	ClientLatency time.Duration `json:"client_latency" yaml:"client_latency"`
}
