// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/pkg/types"
)

// State is where an Orchestrator is in its submission cycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// OutcomeKind classifies a finished submission.
type OutcomeKind int

const (
	// OutcomeSuccess carries a parsed result.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailed is a network or status failure; retry is offered.
	OutcomeFailed
	// OutcomeParseError is a 2xx whose body could not be read as a
	// result; the raw body is kept and retry is offered.
	OutcomeParseError
	// OutcomeQueued is a network failure absorbed by the offline queue.
	OutcomeQueued
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeQueued:
		return "queued"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the typed result of Submit or Retry.
type Outcome struct {
	Kind   OutcomeKind
	Result *types.VerificationResult

	// Err is set for OutcomeFailed and OutcomeParseError.
	Err error

	// RawBody is the response body of a status or parse failure.
	RawBody string

	// Queued is the queue item for OutcomeQueued.
	Queued *types.OfflineQueueItem
}

// RetryOffered reports whether the user should be offered a retry.
func (o *Outcome) RetryOffered() bool {
	return o.Kind == OutcomeFailed || o.Kind == OutcomeParseError
}

// Submitter sends one request. *Client implements it.
type Submitter interface {
	Submit(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error)
}

// Enqueuer parks a request until connectivity returns.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *types.VerificationRequest) (types.OfflineQueueItem, error)
}

// SharedSource loads payloads handed over by share actions.
type SharedSource interface {
	Consume(ctx context.Context, key string) (*types.CacheEntry, error)
}

// Draft is the user input a shared image is combined with.
type Draft struct {
	Text     string
	Mode     types.Mode
	Language string
}

// Orchestrator runs the submission cycle of one session: it refuses
// concurrent submissions, remembers the last request for Retry and turns
// client errors into Outcomes. The queue and the shared source are
// optional.
type Orchestrator struct {
	client Submitter
	queue  Enqueuer
	shared SharedSource
	logger *zap.Logger

	mu    sync.Mutex
	state State
	retry types.RetryDescriptor

	// unresolvedRef is the shared key ResolveShared failed to load.
	unresolvedRef string
}

// NewOrchestrator returns an idle Orchestrator. queue and shared may be nil.
func NewOrchestrator(client Submitter, queue Enqueuer, shared SharedSource, logger *zap.Logger) *Orchestrator {
	logger = logging.OrNop(logger)
	return &Orchestrator{
		client: client,
		queue:  queue,
		shared: shared,
		logger: logger,
		state:  StateIdle,
		retry:  types.RetryDescriptor{Kind: types.KindNone},
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RetryDescriptor returns a copy of the remembered submission.
func (o *Orchestrator) RetryDescriptor() types.RetryDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	d := o.retry
	d.Request = d.Request.Clone()
	return d
}

// ResolveShared builds a request from d and the shared payload stored under
// key. When the payload cannot be loaded the request carries the text only
// and a later Retry reports ErrNoImageForRetry; without text either, the
// load error is returned.
func (o *Orchestrator) ResolveShared(ctx context.Context, key string, d Draft) (*types.VerificationRequest, error) {
	entry, err := o.loadShared(ctx, key)
	if err != nil {
		o.logger.Warn("shared image unavailable", zap.String("key", key), zap.Error(err))
		if strings.TrimSpace(d.Text) == "" {
			return nil, fmt.Errorf("%w: %w", ErrNoImageForRetry, err)
		}
		req, verr := types.NewVerificationRequest(d.Text, nil, d.Mode, d.Language)
		if verr != nil {
			return nil, verr
		}
		o.mu.Lock()
		o.unresolvedRef = key
		o.mu.Unlock()
		return req, nil
	}

	img := &types.Image{Data: entry.Payload, ContentType: entry.ContentType}
	req, err := types.NewVerificationRequest(d.Text, img, d.Mode, d.Language)
	if err != nil {
		return nil, err
	}
	if req.HasImage() {
		req.SharedImageRef = key
	}
	return req, nil
}

func (o *Orchestrator) loadShared(ctx context.Context, key string) (*types.CacheEntry, error) {
	if o.shared == nil {
		return nil, errors.New("no shared payload cache configured")
	}
	return o.shared.Consume(ctx, key)
}

// Submit sends req and records it for Retry. It returns ErrBusy while
// another submission is in flight and an *InputValidationError for an
// invalid request; every other failure is reported through the Outcome.
func (o *Orchestrator) Submit(ctx context.Context, req *types.VerificationRequest) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	d := types.RetryDescriptor{
		Kind:     req.Kind(),
		Text:     req.Text,
		ImageRef: req.SharedImageRef,
		Request:  req.Clone(),
	}
	if o.unresolvedRef != "" && !req.HasImage() {
		d.Kind = types.KindImage
		d.ImageRef = o.unresolvedRef
		d.ImageUnavailable = true
	}
	o.unresolvedRef = ""
	o.retry = d
	o.state = StateSubmitting
	o.mu.Unlock()

	return o.send(ctx, req.Clone()), nil
}

// Retry resends the last submitted request unchanged.
func (o *Orchestrator) Retry(ctx context.Context) (*Outcome, error) {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	d := o.retry
	switch {
	case d.Kind == types.KindNone || d.Request == nil:
		o.mu.Unlock()
		return nil, ErrNothingToRetry
	case d.Kind == types.KindImage && d.ImageUnavailable:
		o.mu.Unlock()
		return nil, ErrNoImageForRetry
	}
	o.state = StateSubmitting
	o.mu.Unlock()

	return o.send(ctx, d.Request.Clone()), nil
}

func (o *Orchestrator) send(ctx context.Context, req *types.VerificationRequest) *Outcome {
	res, err := o.client.Submit(ctx, req)
	out := o.classify(ctx, req, res, err)

	o.mu.Lock()
	if out.Kind == OutcomeSuccess {
		o.state = StateSucceeded
	} else {
		o.state = StateFailed
	}
	o.mu.Unlock()

	o.logger.Info("verification finished",
		zap.String("request_id", req.ID),
		zap.Stringer("outcome", out.Kind),
		zap.Error(out.Err))
	return out
}

func (o *Orchestrator) classify(ctx context.Context, req *types.VerificationRequest, res *types.VerificationResult, err error) *Outcome {
	if err == nil {
		return &Outcome{Kind: OutcomeSuccess, Result: res}
	}

	var (
		parseErr  *ParseError
		statusErr *HTTPStatusError
		netErr    *NetworkError
	)
	switch {
	case errors.As(err, &parseErr):
		return &Outcome{Kind: OutcomeParseError, Err: err, RawBody: parseErr.Body}
	case errors.As(err, &statusErr):
		return &Outcome{Kind: OutcomeFailed, Err: err, RawBody: statusErr.Body}
	case errors.As(err, &netErr) && o.queue != nil:
		item, qerr := o.queue.Enqueue(ctx, req)
		if qerr != nil {
			return &Outcome{Kind: OutcomeFailed, Err: errors.Join(err, fmt.Errorf("queueing request: %w", qerr))}
		}
		return &Outcome{Kind: OutcomeQueued, Queued: &item}
	default:
		return &Outcome{Kind: OutcomeFailed, Err: err}
	}
}
