// Package store is the client side of the remote collection API holding
// bill records and proof files.
package store

import (
	"context"
	"errors"
	"io"
	"net/http"

	"billed/internal/models"
)

// Client hands out resource handles.
type Client interface {
	Bills() Resource
}

// Resource is the set of operations on one remote collection.
type Resource interface {
	List(ctx context.Context, q ListQuery) ([]models.Bill, error)
	Create(ctx context.Context, req CreateRequest) (*UploadResult, error)
	Update(ctx context.Context, req UpdateRequest) (*models.Bill, error)
}

// ListQuery narrows a list to the bills of one owner. An empty Email lists
// every bill.
type ListQuery struct {
	Email string
}

// Headers tunes how a request body is sent.
type Headers struct {
	// NoContentType leaves the content type to the body encoder, which is
	// what a multipart upload needs. HTTPClient encodes every create as
	// multipart and always lets the writer set the type and boundary.
	NoContentType bool
}

// CreateRequest uploads a proof file for the given owner.
type CreateRequest struct {
	File        io.Reader
	FileName    string
	ContentType string
	Email       string
	Headers     Headers
}

// UploadResult is what the remote returns for a stored proof file.
type UploadResult struct {
	FileURL string `json:"fileUrl"`
	FileID  string `json:"fileId"`
	Key     string `json:"key"`
}

// UpdateRequest replaces the record addressed by Selector with Data, a JSON
// encoded bill.
type UpdateRequest struct {
	Selector string
	Data     string
}

// Error is a failed remote call. Message is meant to be shown as is.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized reports a 401 failure.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports a 404 failure.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsServerError reports a 5xx failure.
func IsServerError(err error) bool {
	return StatusOf(err) >= http.StatusInternalServerError
}
