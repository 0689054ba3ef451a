// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sharetarget

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/channi23/OrangeLens/internal/cachestore"
	"github.com/channi23/OrangeLens/internal/sharedcache"
	"github.com/channi23/OrangeLens/pkg/types"
)

type imagePart struct {
	data        []byte
	contentType string
}

func multipartRequest(t *testing.T, fields map[string]string, img *imagePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
		if img.contentType != "" {
			h.Set("Content-Type", img.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(img.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, Path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newInterceptor(t *testing.T) (*Interceptor, *sharedcache.Cache) {
	t.Helper()
	shared := sharedcache.New(cachestore.NewMemoryStore(), "truthlens-shared-v1", types.SharedConfig{MaxBytes: 1 << 20}, zaptest.NewLogger(t))
	return New(shared, shared.MaxBytes(), zaptest.NewLogger(t)), shared
}

func TestServeHTTP_TextOnly(t *testing.T) {
	i, _ := newInterceptor(t)

	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": "Hello"}, nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?text=Hello", rec.Header().Get("Location"))
}

func TestServeHTTP_ImageRoundTrip(t *testing.T) {
	i, shared := newInterceptor(t)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": "Hello"}, &imagePart{data: png, contentType: "image/png"}))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.True(t, strings.HasPrefix(loc.RawQuery, "text=Hello&sharedImage=%2Fshared%2F"), loc.RawQuery)

	key := loc.Query().Get("sharedImage")
	assert.Regexp(t, `^/shared/\d+-[0-9a-f]{8}$`, key)

	// The redirect target can be fetched immediately.
	get := httptest.NewRecorder()
	shared.ServeHTTP(get, httptest.NewRequest(http.MethodGet, key, nil))
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "image/png", get.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", get.Header().Get("Cache-Control"))
	assert.Equal(t, png, get.Body.Bytes())
}

func TestServeHTTP_ImageWithoutContentType(t *testing.T) {
	i, shared := newInterceptor(t)

	req := multipartRequest(t, map[string]string{"text": "x"}, &imagePart{data: []byte{1, 2, 3}})
	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, req)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	e, err := shared.Get(context.Background(), loc.Query().Get("sharedImage"))
	require.NoError(t, err)
	// A part without a declared type is stored as octet-stream.
	assert.Equal(t, "application/octet-stream", e.ContentType)
}

func TestServeHTTP_TextFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{name: "title when text is empty", fields: map[string]string{"text": "", "title": "Headline"}, want: "/?text=Headline"},
		{name: "url as last resort", fields: map[string]string{"url": "https://example.com/a?b=c"}, want: "/?text=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc"},
		{name: "nothing shared", fields: map[string]string{}, want: "/?text="},
		{name: "spaces and ampersands", fields: map[string]string{"text": "cats & dogs"}, want: "/?text=cats%20%26%20dogs"},
		{name: "angle brackets escaped", fields: map[string]string{"text": "5 < 6"}, want: "/?text=5%20%3C%206"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, _ := newInterceptor(t)
			rec := httptest.NewRecorder()
			i.ServeHTTP(rec, multipartRequest(t, tt.fields, nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestServeHTTP_TextKeptVerbatim(t *testing.T) {
	for _, text := range []string{
		"x<y and y>z",
		"if x<y and y>z then x<z",
		"Is <b>this</b> true?",
		"Tom &amp; Jerry said \"hi\"",
		"नमस्ते, is this real?",
	} {
		t.Run(text, func(t *testing.T) {
			i, _ := newInterceptor(t)
			rec := httptest.NewRecorder()
			i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": text}, nil))
			require.Equal(t, http.StatusSeeOther, rec.Code)

			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, text, loc.Query().Get("text"))
		})
	}
}

func TestServeHTTP_EmptyImageIgnored(t *testing.T) {
	i, _ := newInterceptor(t)
	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": "Hello"}, &imagePart{data: nil, contentType: "image/png"}))
	assert.Equal(t, "/?text=Hello", rec.Header().Get("Location"))
}

func TestServeHTTP_URLEncodedForm(t *testing.T) {
	i, _ := newInterceptor(t)
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("title=From+a+form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, req)
	assert.Equal(t, "/?text=From%20a%20form", rec.Header().Get("Location"))
}

func TestServeHTTP_DecodeErrorRedirectsHome(t *testing.T) {
	i, _ := newInterceptor(t)
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("--broken\r\nnot a part"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=broken")

	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Zero(t, rec.Body.Len())
}

func TestServeHTTP_OversizeRedirectsHome(t *testing.T) {
	shared := sharedcache.New(cachestore.NewMemoryStore(), "s", types.SharedConfig{MaxBytes: 8}, zaptest.NewLogger(t))
	i := New(shared, shared.MaxBytes(), zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": "big"}, &imagePart{data: bytes.Repeat([]byte("x"), 64), contentType: "image/png"}))
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

type failingPersister struct{}

func (failingPersister) Put(context.Context, []byte, string) (string, error) {
	return "", &cachestore.StorageError{Op: "put", Err: errors.New("quota exceeded")}
}

func TestServeHTTP_PersistFailureRedirectsHome(t *testing.T) {
	i := New(failingPersister{}, 0, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	i.ServeHTTP(rec, multipartRequest(t, map[string]string{"text": "Hello"}, &imagePart{data: []byte("img"), contentType: "image/jpeg"}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDecode_ErrorType(t *testing.T) {
	i, _ := newInterceptor(t)
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data")

	_, err := i.Decode(req)
	var de *ShareDecodeError
	assert.True(t, errors.As(err, &de), "got %v", err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "/?text=Hello", Location("Hello", ""))
	assert.Equal(t, "/?text=Hello&sharedImage=%2Fshared%2F1-abcdef12", Location("Hello", "/shared/1-abcdef12"))
	assert.Equal(t, "/?text=%E2%9C%93", Location("✓", ""))
}
