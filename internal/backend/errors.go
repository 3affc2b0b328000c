package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// ErrNotFound matches any 404 from the backend.
var ErrNotFound = errors.New("offer not found")

// APIError is a non-success response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.StatusCode)
}

// Is lets errors.Is match a 404 against ErrNotFound while the backend's
// message stays available.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// DuplicateOfferError is returned when a create request matches an offer the
// backend already tracks.
type DuplicateOfferError struct {
	Message    string
	ExistingID int
	Existing   models.Offer
}

func (e *DuplicateOfferError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("offer already exists (id %d)", e.ExistingID)
}

// NetworkError wraps a transport failure. Only the operation that hit it is
// aborted.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err was caused by the transport.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
