// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channi23/OrangeLens/pkg/types"
)

func mustRequest(t *testing.T, text string, img *types.Image) *types.VerificationRequest {
	t.Helper()
	req, err := types.NewVerificationRequest(text, img, types.ModeFast, "en")
	require.NoError(t, err)
	return req
}

func jpeg() *types.Image {
	return &types.Image{Data: []byte("\xff\xd8\xff\xe0fake-jpeg"), ContentType: "image/jpeg"}
}

type part struct {
	name, filename, contentType, value string
}

func readParts(t *testing.T, r *http.Request) []part {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(r.Body, params["boundary"])
	var parts []part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, part{
			name:        p.FormName(),
			filename:    p.FileName(),
			contentType: p.Header.Get("Content-Type"),
			value:       string(data),
		})
	}
	return parts
}

func TestSelect_ImagePresenceDecides(t *testing.T) {
	s := NewStrategies(types.VerifyConfig{BaseURL: "http://backend"})

	tests := []struct {
		name string
		text string
		img  *types.Image
		want string
	}{
		{"text only", "Claim", nil, "json"},
		{"image only", "", jpeg(), "multipart"},
		{"text and image", "Claim", jpeg(), "multipart"},
		{"empty image is ignored", "Claim", &types.Image{ContentType: "image/png"}, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustRequest(t, tt.text, tt.img)
			assert.Equal(t, tt.want, s.Select(req).Name())
		})
	}
}

func TestNewStrategies_Endpoints(t *testing.T) {
	tests := []struct {
		name      string
		cfg       types.VerifyConfig
		wantText  string
		wantImage string
	}{
		{
			name:      "test endpoints without key",
			cfg:       types.VerifyConfig{BaseURL: "http://backend/"},
			wantText:  "http://backend/v1/verify-test",
			wantImage: "http://backend/v1/verify-image-test",
		},
		{
			name:      "authenticated image endpoint with key",
			cfg:       types.VerifyConfig{BaseURL: "http://backend", APIKey: "k"},
			wantText:  "http://backend/v1/verify-test",
			wantImage: "http://backend/v1/verify",
		},
		{
			name:      "configured paths win",
			cfg:       types.VerifyConfig{BaseURL: "http://backend", APIKey: "k", TextPath: "/t", ImagePath: "/i"},
			wantText:  "http://backend/t",
			wantImage: "http://backend/i",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStrategies(tt.cfg)
			assert.Equal(t, tt.wantText, s.Text.(JSONStrategy).URL)
			assert.Equal(t, tt.wantImage, s.Image.(MultipartStrategy).URL)
		})
	}
}

func TestJSONStrategy_Build(t *testing.T) {
	s := JSONStrategy{Endpoint{URL: "http://backend/v1/verify-test"}}
	req := mustRequest(t, `Say "hi"`, nil)

	httpReq, err := s.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, httpReq.Method)
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Empty(t, httpReq.Header.Get("Authorization"))
	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Say \"hi\"","mode":"fast","language":"en"}`, string(body))
}

func TestJSONStrategy_BearerHeader(t *testing.T) {
	s := JSONStrategy{Endpoint{URL: "http://backend/v1/verify-test", APIKey: "secret"}}
	httpReq, err := s.Build(context.Background(), mustRequest(t, "Claim", nil))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", httpReq.Header.Get("Authorization"))
}

func TestMultipartStrategy_FieldOrder(t *testing.T) {
	s := MultipartStrategy{Endpoint{URL: "http://backend/v1/verify-image-test"}}

	t.Run("with text", func(t *testing.T) {
		httpReq, err := s.Build(context.Background(), mustRequest(t, "Claim", jpeg()))
		require.NoError(t, err)
		parts := readParts(t, httpReq)
		require.Len(t, parts, 4)
		assert.Equal(t, part{name: "mode", value: "fast"}, parts[0])
		assert.Equal(t, part{name: "language", value: "en"}, parts[1])
		assert.Equal(t, part{name: "text", value: "Claim"}, parts[2])
		assert.Equal(t, "image", parts[3].name)
		assert.Equal(t, "upload.jpg", parts[3].filename)
		assert.Equal(t, "image/jpeg", parts[3].contentType)
		assert.Equal(t, string(jpeg().Data), parts[3].value)
	})

	t.Run("blank text is omitted", func(t *testing.T) {
		httpReq, err := s.Build(context.Background(), mustRequest(t, "  ", jpeg()))
		require.NoError(t, err)
		parts := readParts(t, httpReq)
		require.Len(t, parts, 3)
		assert.Equal(t, []string{"mode", "language", "image"}, []string{parts[0].name, parts[1].name, parts[2].name})
	})
}

func TestMultipartStrategy_DeterministicBody(t *testing.T) {
	s := MultipartStrategy{Endpoint{URL: "http://backend/v1/verify"}}
	req := mustRequest(t, "Claim", jpeg())

	first, err := s.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Build(context.Background(), req.Clone())
	require.NoError(t, err)

	a, _ := io.ReadAll(first.Body)
	b, _ := io.ReadAll(second.Body)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Header.Get("Content-Type"), second.Header.Get("Content-Type"))
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		name, filename, contentType, want string
	}{
		{"explicit name", "cat.webp", "image/png", "cat.webp"},
		{"jpeg", "", "image/jpeg", "upload.jpg"},
		{"png", "", "image/png", "upload.png"},
		{"parameters ignored", "", "image/png; charset=binary", "upload.png"},
		{"malformed type", "", ";;", "upload.jpg"},
		{"unknown type", "", "application/x-truthlens-unknown", "upload.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imageFilename(tt.filename, tt.contentType))
		})
	}
}

func TestBoundaryFor(t *testing.T) {
	assert.Empty(t, boundaryFor(""))
	b := boundaryFor("0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Equal(t, "truthlens-0f8fad5bd9cb469fa16570867728950e", b)
	assert.LessOrEqual(t, len(boundaryFor(string(make([]byte, 100)))), 70)
}
