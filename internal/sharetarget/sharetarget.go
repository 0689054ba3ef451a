// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sharetarget turns share-action submissions (POST /verify) into a
// redirect to the application root carrying the shared text and, when an
// image was shared, the key it was stored under.
package sharetarget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
)

// Path is the share target action.
const Path = "/verify"

// DefaultMaxMemory is the multipart size kept in memory; larger parts spill
// to temporary files.
const DefaultMaxMemory = 32 << 20

// formOverhead is allowed on top of the image limit for the other fields
// and multipart framing.
const formOverhead = 1 << 20

// Persister stores a shared image and returns the key it is served under.
type Persister interface {
	Put(ctx context.Context, blob []byte, contentType string) (string, error)
}

// ShareDecodeError reports a submission whose form could not be read.
type ShareDecodeError struct {
	Err error
}

func (e *ShareDecodeError) Error() string {
	return fmt.Sprintf("decoding share submission: %v", e.Err)
}

func (e *ShareDecodeError) Unwrap() error { return e.Err }

// Share is a decoded share submission.
type Share struct {
	Text        string
	Image       []byte
	ContentType string
	Filename    string
}

// Interceptor handles share submissions.
type Interceptor struct {
	shared   Persister
	maxBytes int64
	logger   *zap.Logger
}

// New returns an Interceptor that stores images in shared. maxBytes bounds
// the image size; zero disables the bound.
func New(shared Persister, maxBytes int64, logger *zap.Logger) *Interceptor {
	return &Interceptor{
		shared:   shared,
		maxBytes: maxBytes,
		logger:   logging.OrNop(logger),
	}
}

// Decode reads the submission form. Text is taken from the text field,
// falling back to title and then url, and kept exactly as shared. Both
// multipart and URL-encoded bodies are accepted.
func (i *Interceptor) Decode(r *http.Request) (*Share, error) {
	err := r.ParseMultipartForm(DefaultMaxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, &ShareDecodeError{Err: err}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	share := &Share{Text: firstNonEmpty(
		r.PostFormValue("text"),
		r.PostFormValue("title"),
		r.PostFormValue("url"),
	)}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return share, nil
	case err != nil:
		return nil, &ShareDecodeError{Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &ShareDecodeError{Err: fmt.Errorf("reading image part: %w", err)}
	}
	share.Image = data
	share.ContentType = header.Header.Get("Content-Type")
	share.Filename = header.Filename
	return share, nil
}

// ServeHTTP decodes the submission, persists a non-empty image and answers
// 303 See Other. Any failure degrades to a bare redirect to /.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if i.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, i.maxBytes+formOverhead)
	}

	share, err := i.Decode(r)
	if err != nil {
		i.logger.Warn("share submission rejected", zap.Error(err))
		redirect(w, "/")
		return
	}

	var key string
	if len(share.Image) > 0 {
		// The image must be stored before the redirect is sent so the
		// application can fetch it on load.
		key, err = i.shared.Put(r.Context(), share.Image, share.ContentType)
		if err != nil {
			i.logger.Error("storing shared image failed", zap.Error(err))
			redirect(w, "/")
			return
		}
	}

	i.logger.Info("share received",
		zap.Int("text_len", len(share.Text)),
		zap.Int("image_bytes", len(share.Image)),
		zap.String("shared_image", key))
	redirect(w, Location(share.Text, key))
}

// Location builds the redirect target /?text=<text>[&sharedImage=<key>].
func Location(text, sharedKey string) string {
	loc := "/?text=" + escapeComponent(text)
	if sharedKey != "" {
		loc += "&sharedImage=" + escapeComponent(sharedKey)
	}
	return loc
}

func redirect(w http.ResponseWriter, loc string) {
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusSeeOther)
}

// escapeComponent percent-encodes s for a query value, with spaces as %20.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
