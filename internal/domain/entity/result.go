package entity

import "time"

// Error codes carried inside SyndicationError. These are business-level
// outcomes, not transport errors; the HTTP layer maps only AUTH_REQUIRED,
// FORBIDDEN and NOT_FOUND to non-2xx responses.
const (
	CodeAuthRequired    = "AUTH_REQUIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeNotPublished    = "NOT_PUBLISHED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeSyncInProgress  = "SYNC_IN_PROGRESS"
	CodePublishFailed   = "PUBLISH_FAILED"
	CodeUpdateFailed    = "UPDATE_FAILED"
	CodeRemoveFailed    = "REMOVE_FAILED"
	CodeInvalidWebhook  = "INVALID_WEBHOOK"
	CodeBatchItemFailed = "BATCH_ITEM_FAILED"
)

// SyndicationError is the structured error embedded in a SyndicationResult.
// Retryable is the caller's hint that the same request may succeed later
// (rate limit windows, in-flight locks, transient portal failures).
type SyndicationError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Error implements the error interface.
func (e *SyndicationError) Error() string {
	return e.Code + ": " + e.Message
}

// SyndicationResult is the outcome of one sync attempt for one
// (listing, portal) pair. It is the unit persisted into the status store
// and returned per portal from the orchestrator.
type SyndicationResult struct {
	Portal      Portal            `json:"portal"`
	Status      SyndicationStatus `json:"status"`
	ExternalID  string            `json:"external_id,omitempty"`
	ExternalURL string            `json:"external_url,omitempty"`
	SyncedAt    time.Time         `json:"synced_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Error       *SyndicationError `json:"error,omitempty"`
}

// ErrorResult builds a SyndicationResult carrying a structured error.
// Status is StatusError unless the caller supplies a more specific one
// (lock contention reports StatusSyncing, for example).
func ErrorResult(portal Portal, status SyndicationStatus, code, message string, retryable bool) SyndicationResult {
	return SyndicationResult{
		Portal:   portal,
		Status:   status,
		SyncedAt: time.Now(),
		Error: &SyndicationError{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
