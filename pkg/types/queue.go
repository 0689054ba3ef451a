// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// OfflineQueueItem is a verification request waiting for connectivity.
type OfflineQueueItem struct {
	ID            int64                `json:"id" yaml:"id"`
	Request       *VerificationRequest `json:"request" yaml:"request"`
	EnqueuedAt    time.Time            `json:"enqueued_at" yaml:"enqueued_at"`
	Attempts      int                  `json:"attempts" yaml:"attempts"`
	LastAttemptAt time.Time            `json:"last_attempt_at,omitempty" yaml:"last_attempt_at,omitempty"`
	LastError     string               `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// RetryDescriptor remembers the most recent interactive submission so the
// user can resend it unchanged.
type RetryDescriptor struct {
	Kind RequestKind `json:"kind"`
	Text string      `json:"text"`

	// ImageRef is the shared-payload key the image was resolved from.
	ImageRef string `json:"image_ref,omitempty"`

	// Request is the exact request that was sent.
	Request *VerificationRequest `json:"-"`

	// ImageUnavailable is set when the image named by ImageRef could not
	// be loaded.
	ImageUnavailable bool `json:"image_unavailable,omitempty"`
}
