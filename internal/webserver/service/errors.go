package service

import (
	"fmt"
	"net/http"
	"strings"
)

// Reasons are the machine-checkable failure causes reported to the clients.
const (
	ReasonMissingFields    = "missing fields"
	ReasonInvalidFields    = "invalid fields"
	ReasonIncomplete       = "not all chunks uploaded yet"
	ReasonMissingChunk     = "missing chunk"
	ReasonSizeMismatch     = "file size mismatch"
	ReasonChecksumMismatch = "checksum mismatch"
	ReasonStorage          = "storage failure"
)

// A DetailedError is an error rendered with a reason and extra fields.
type DetailedError interface {
	error
	HTTPCode() int
	Reason() string
	Details() map[string]interface{}
}

//
//-----
//

// A ValidationError is returned when the fields of a chunk request are missing or malformed.
type ValidationError struct {
	reason string
	Fields []string
}

// NewMissingFieldsError returns a ValidationError for absent fields.
func NewMissingFieldsError(fields ...string) *ValidationError {
	return &ValidationError{reason: ReasonMissingFields, Fields: fields}
}

// NewInvalidFieldsError returns a ValidationError for malformed fields.
func NewInvalidFieldsError(fields ...string) *ValidationError {
	return &ValidationError{reason: ReasonInvalidFields, Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) HTTPCode() int {
	return http.StatusBadRequest
}

func (e *ValidationError) Reason() string {
	return e.reason
}

func (e *ValidationError) Details() map[string]interface{} {
	return map[string]interface{}{"fields": e.Fields}
}

//
//-----
//

// An IncompleteUploadError is returned when the last chunk arrives before all the others.
type IncompleteUploadError struct {
	Received int
	Total    int
	Missing  []int
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("%s: received %d of %d chunks", ReasonIncomplete, e.Received, e.Total)
}

func (e *IncompleteUploadError) HTTPCode() int {
	return http.StatusConflict
}

func (e *IncompleteUploadError) Reason() string {
	return ReasonIncomplete
}

func (e *IncompleteUploadError) Details() map[string]interface{} {
	return map[string]interface{}{
		"received": e.Received,
		"total":    e.Total,
		"missing":  e.Missing,
	}
}

//
//-----
//

// A MissingChunkError is returned when a chunk index is absent during the reassembly.
type MissingChunkError struct {
	Index int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("%s: index %d", ReasonMissingChunk, e.Index)
}

func (e *MissingChunkError) HTTPCode() int {
	return http.StatusUnprocessableEntity
}

func (e *MissingChunkError) Reason() string {
	return ReasonMissingChunk
}

func (e *MissingChunkError) Details() map[string]interface{} {
	return map[string]interface{}{"index": e.Index}
}

//
//-----
//

// A SizeMismatchError is returned when the reassembled length differs from the declared file size.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d bytes, got %d", ReasonSizeMismatch, e.Expected, e.Actual)
}

func (e *SizeMismatchError) HTTPCode() int {
	return http.StatusUnprocessableEntity
}

func (e *SizeMismatchError) Reason() string {
	return ReasonSizeMismatch
}

func (e *SizeMismatchError) Details() map[string]interface{} {
	return map[string]interface{}{
		"expected": e.Expected,
		"actual":   e.Actual,
	}
}

//
//-----
//

// A ChecksumMismatchError is returned when the reassembled digest differs from the declared one.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ReasonChecksumMismatch, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) HTTPCode() int {
	return http.StatusUnprocessableEntity
}

func (e *ChecksumMismatchError) Reason() string {
	return ReasonChecksumMismatch
}

func (e *ChecksumMismatchError) Details() map[string]interface{} {
	return map[string]interface{}{
		"expected": e.Expected,
		"actual":   e.Actual,
	}
}

//
//-----
//

// A StorageError wraps an environmental failure of the chunk store, the database or a sink.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ReasonStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Cause makes the error compatible with errors.Cause.
func (e *StorageError) Cause() error {
	return e.Err
}

func (e *StorageError) HTTPCode() int {
	return http.StatusInternalServerError
}

func (e *StorageError) Reason() string {
	return ReasonStorage
}

func (e *StorageError) Details() map[string]interface{} {
	return map[string]interface{}{"op": e.Op}
}
