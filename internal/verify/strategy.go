// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/channi23/OrangeLens/pkg/types"
)

// Default endpoint paths.
const (
	TextPath          = "/v1/verify-test"
	ImagePath         = "/v1/verify-image-test"
	AuthenticatedPath = "/v1/verify"
)

// DefaultImageContentType is assumed for images without a declared type.
const DefaultImageContentType = "image/jpeg"

// Strategy turns a request into one HTTP submission shape.
type Strategy interface {
	Name() string
	Build(ctx context.Context, req *types.VerificationRequest) (*http.Request, error)
}

// Endpoint is where and how a strategy submits.
type Endpoint struct {
	URL    string
	APIKey string
}

func (e Endpoint) newRequest(ctx context.Context, body []byte, contentType string) (*http.Request, error) {
	// bytes.Reader lets retries replay the identical body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
	return req, nil
}

// JSONStrategy sends text-only requests as a JSON object.
type JSONStrategy struct {
	Endpoint
}

type jsonBody struct {
	Text     string     `json:"text"`
	Mode     types.Mode `json:"mode"`
	Language string     `json:"language"`
}

// Name implements Strategy.
func (JSONStrategy) Name() string { return "json" }

// Build implements Strategy.
func (s JSONStrategy) Build(ctx context.Context, req *types.VerificationRequest) (*http.Request, error) {
	body, err := json.Marshal(jsonBody{Text: req.Text, Mode: req.Mode, Language: req.Language})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return s.newRequest(ctx, body, "application/json")
}

// MultipartStrategy sends requests carrying an image as multipart form data.
type MultipartStrategy struct {
	Endpoint
}

// Name implements Strategy.
func (MultipartStrategy) Name() string { return "multipart" }

// Build implements Strategy. Fields are written in the order mode,
// language, text (only when non-empty), image. The boundary is derived from
// the request ID so the same request always encodes to the same bytes.
func (s MultipartStrategy) Build(ctx context.Context, req *types.VerificationRequest) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if b := boundaryFor(req.ID); b != "" {
		// An ID that is not a valid boundary keeps the random one.
		_ = mw.SetBoundary(b)
	}

	if err := mw.WriteField("mode", string(req.Mode)); err != nil {
		return nil, err
	}
	if err := mw.WriteField("language", req.Language); err != nil {
		return nil, err
	}
	if req.Text != "" {
		if err := mw.WriteField("text", req.Text); err != nil {
			return nil, err
		}
	}

	if req.Image != nil {
		ct := req.Image.ContentType
		if ct == "" {
			ct = DefaultImageContentType
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, imageFilename(req.Image.Filename, ct)))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(req.Image.Data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}
	return s.newRequest(ctx, buf.Bytes(), mw.FormDataContentType())
}

// boundaryFor returns a multipart boundary for a request ID, or "" to let
// the writer pick a random one.
func boundaryFor(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if id == "" {
		return ""
	}
	b := "truthlens-" + id
	if len(b) > 70 {
		b = b[:70]
	}
	return b
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

func imageFilename(name, contentType string) string {
	if name != "" {
		return name
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "upload.jpg"
	}
	if ext, ok := imageExtensions[mediaType]; ok {
		return "upload" + ext
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return "upload" + exts[0]
	}
	return "upload.jpg"
}

// Strategies pairs the two submission shapes.
type Strategies struct {
	Text  Strategy
	Image Strategy
}

// NewStrategies builds the strategies for cfg. Without an API key the free
// test endpoints are used; with one, images go to the authenticated
// endpoint. Configured paths override both.
func NewStrategies(cfg types.VerifyConfig) Strategies {
	base := strings.TrimRight(cfg.BaseURL, "/")

	textPath := cfg.TextPath
	if textPath == "" {
		textPath = TextPath
	}
	imagePath := cfg.ImagePath
	if imagePath == "" {
		imagePath = ImagePath
		if cfg.APIKey != "" {
			imagePath = AuthenticatedPath
		}
	}

	return Strategies{
		Text:  JSONStrategy{Endpoint{URL: base + textPath, APIKey: cfg.APIKey}},
		Image: MultipartStrategy{Endpoint{URL: base + imagePath, APIKey: cfg.APIKey}},
	}
}

// Select returns the strategy for req. Image presence alone decides.
func (s Strategies) Select(req *types.VerificationRequest) Strategy {
	if req.HasImage() {
		return s.Image
	}
	return s.Text
}
