// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/internal/offlinequeue"
	"github.com/channi23/OrangeLens/internal/verify"
	"github.com/channi23/OrangeLens/pkg/types"
)

// maxVerifyBody bounds a JSON verification submission, image included.
const maxVerifyBody = 32 << 20

// VerifyRequest is the body of POST /api/v1/verify. SharedImage names a
// payload stored by the share target; Image carries one inline instead.
type VerifyRequest struct {
	Text        string       `json:"text"`
	Mode        types.Mode   `json:"mode,omitempty"`
	Language    string       `json:"language,omitempty"`
	SharedImage string       `json:"sharedImage,omitempty"`
	Image       *types.Image `json:"image,omitempty"`
}

// QueuedResponse is returned with 202 when a request went to the offline
// queue.
type QueuedResponse struct {
	Queued    bool   `json:"queued"`
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
}

// ErrorResponse is the body of every error answer from the edge API.
type ErrorResponse struct {
	Error        string `json:"error"`
	Outcome      string `json:"outcome,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	Body         string `json:"body,omitempty"`
	RetryOffered bool   `json:"retry_offered,omitempty"`
}

// VerifyHandler serves POST /api/v1/verify. Each call runs its own
// Orchestrator, so network failures land in the queue when one is set.
type VerifyHandler struct {
	client   verify.Submitter
	queue    verify.Enqueuer
	shared   verify.SharedSource
	defaults types.VerifyConfig
	logger   *zap.Logger
}

// NewVerifyHandler returns a VerifyHandler. queue and shared may be nil.
func NewVerifyHandler(client verify.Submitter, queue verify.Enqueuer, shared verify.SharedSource, defaults types.VerifyConfig, logger *zap.Logger) *VerifyHandler {
	logger = logging.OrNop(logger)
	return &VerifyHandler{client: client, queue: queue, shared: shared, defaults: defaults, logger: logger}
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var in VerifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVerifyBody))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	if in.Mode == "" {
		in.Mode = h.defaults.Mode
	}
	if in.Language == "" {
		in.Language = h.defaults.Language
	}

	o := verify.NewOrchestrator(h.client, h.queue, h.shared, h.logger)

	var (
		req *types.VerificationRequest
		err error
	)
	if in.SharedImage != "" && in.Image == nil {
		req, err = o.ResolveShared(r.Context(), in.SharedImage, verify.Draft{Text: in.Text, Mode: in.Mode, Language: in.Language})
	} else {
		req, err = types.NewVerificationRequest(in.Text, in.Image, in.Mode, in.Language)
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := o.Submit(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	switch out.Kind {
	case verify.OutcomeSuccess:
		writeJSON(w, http.StatusOK, out.Result)
	case verify.OutcomeQueued:
		writeJSON(w, http.StatusAccepted, QueuedResponse{Queued: true, ID: out.Queued.ID, RequestID: req.ID})
	default:
		resp := ErrorResponse{
			Error:        out.Err.Error(),
			Outcome:      out.Kind.String(),
			Body:         out.RawBody,
			RetryOffered: out.RetryOffered(),
		}
		var se *verify.HTTPStatusError
		if errors.As(out.Err, &se) {
			resp.StatusCode = se.StatusCode
		}
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

// SyncHandler serves POST /sync/{tag}, the manual reconnect signal.
type SyncHandler struct {
	syncer *offlinequeue.Syncer
}

// NewSyncHandler returns a SyncHandler firing tags on syncer.
func NewSyncHandler(syncer *offlinequeue.Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	err := h.syncer.Fire(r.Context(), tag)
	switch {
	case errors.Is(err, offlinequeue.ErrUnknownTag):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"tag": tag})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
