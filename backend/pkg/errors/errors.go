package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents invalid input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing or foreign-owned resource
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a uniqueness violation
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeAuth represents authentication failures
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeGraph represents graph store errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeStorage represents relational store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeScrape represents URL validation and scraping errors
	ErrorTypeScrape ErrorType = "scrape"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
	// ErrorTypeRateLimit represents throttled requests
	ErrorTypeRateLimit ErrorType = "rate_limit"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrType reports the category; promoted to every embedding error.
func (e *BaseError) ErrType() ErrorType {
	return e.Type
}

// ErrMessage returns the message without the type prefix or wrapped cause.
func (e *BaseError) ErrMessage() string {
	return e.Message
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation Errors

// ErrValidationFailed is returned when a request field is invalid
type ErrValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidationFailed(field, reason string) *ErrValidationFailed {
	return &ErrValidationFailed{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("%s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Resource Errors

// ErrNotFound is returned when a resource does not exist for the requesting owner
type ErrNotFound struct {
	*BaseError
	Resource string
	ID       string
}

func NewNotFound(resource string, id any) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %v", resource, id), nil),
		Resource:  resource,
		ID:        fmt.Sprint(id),
	}
}

// ErrConflict is returned when a write would violate a uniqueness rule
type ErrConflict struct {
	*BaseError
	Resource string
	Key      string
}

func NewConflict(resource, key string) *ErrConflict {
	return &ErrConflict{
		BaseError: NewBaseError(ErrorTypeConflict, fmt.Sprintf("%s already exists: %s", resource, key), nil),
		Resource:  resource,
		Key:       key,
	}
}

// Auth Errors

// ErrInvalidCredentials is returned when login fails
var ErrInvalidCredentials = NewBaseError(ErrorTypeAuth, "invalid email or password", nil)

// ErrUnauthorized is returned when a token is missing, malformed or expired
type ErrUnauthorized struct {
	*BaseError
	Reason string
}

func NewUnauthorized(reason string, err error) *ErrUnauthorized {
	return &ErrUnauthorized{
		BaseError: NewBaseError(ErrorTypeAuth, fmt.Sprintf("unauthorized: %s", reason), err),
		Reason:    reason,
	}
}

// ErrRateLimited is returned when a client exceeds its request budget
var ErrRateLimited = NewBaseError(ErrorTypeRateLimit, "too many requests, try again later", nil)

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Storage Errors

// ErrStorageFailed is returned when a relational query fails
type ErrStorageFailed struct {
	*BaseError
	Operation string
}

func NewStorageFailed(operation string, err error) *ErrStorageFailed {
	return &ErrStorageFailed{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Scrape Errors

// ErrURLRejected is returned when a URL fails the outbound request policy
type ErrURLRejected struct {
	*BaseError
	URL    string
	Reason string
}

func NewURLRejected(url, reason string) *ErrURLRejected {
	return &ErrURLRejected{
		BaseError: NewBaseError(ErrorTypeScrape, fmt.Sprintf("url rejected: %s", reason), nil),
		URL:       url,
		Reason:    reason,
	}
}

// ErrScrapeFailed is returned when fetching or parsing a page fails
type ErrScrapeFailed struct {
	*BaseError
	URL string
}

func NewScrapeFailed(url string, err error) *ErrScrapeFailed {
	return &ErrScrapeFailed{
		BaseError: NewBaseError(ErrorTypeScrape, fmt.Sprintf("failed to scrape %s", url), err),
		URL:       url,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typedError interface {
	error
	ErrType() ErrorType
}

type messageError interface {
	ErrMessage() string
}

// TypeOf returns the category of the first typed error in the chain, or "".
func TypeOf(err error) ErrorType {
	var typed typedError
	if stderrors.As(err, &typed) {
		return typed.ErrType()
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypeScrape:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeContext:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the error is the caller's fault and safe to echo back.
func IsClientError(err error) bool {
	return HTTPStatus(err) < http.StatusInternalServerError
}

// Message returns the message of the first typed error in the chain, or the
// plain error text when the chain carries none.
func Message(err error) string {
	var m messageError
	if stderrors.As(err, &m) {
		return m.ErrMessage()
	}
	return err.Error()
}
