package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind separates failures worth retrying from those that are not.
type Kind int

const (
	Transient Kind = iota
	Fatal
)

func (k Kind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

// Error is a classified translator failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == Fatal
}

// StatusError classifies an HTTP status code.
func StatusError(status int, err error) *Error {
	kind := Transient
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		kind = Transient
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusPaymentRequired, status == http.StatusUnprocessableEntity:
		kind = Fatal
	}
	// OpenAI reports an exhausted account as 429 insufficient_quota.
	if err != nil && isBilling(strings.ToLower(err.Error())) {
		kind = Fatal
	}
	return &Error{Kind: kind, StatusCode: status, Err: err}
}

var (
	// billingMarkers are checked before transientMarkers: these messages
	// often also say "quota" or carry a 429.
	billingMarkers = []string{
		"insufficient_quota", "insufficient quota", "credit balance", "billing",
		"payment required", "exceeded your current quota",
	}
	fatalMarkers = []string{
		"401", "403", "unauthorized", "forbidden", "invalid api key", "invalid x-api-key",
		"authentication", "permission denied", "content policy", "content_filter",
		"safety", "blocked", "invalid_request_error",
	}
	transientMarkers = []string{
		"429", "rate limit", "quota", "overloaded", "timeout", "timed out",
		"connection", "network", "temporarily", "unavailable", "500", "502", "503", "504",
	}
)

// Classify wraps err as an *Error. Already classified errors are returned
// unchanged; unknown failures default to transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return StatusError(gerr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Transient, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return &Error{Kind: Transient, Err: err}
	}

	msg := strings.ToLower(err.Error())
	if isBilling(msg) {
		return &Error{Kind: Fatal, Err: err}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return &Error{Kind: Transient, Err: err}
		}
	}
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return &Error{Kind: Fatal, Err: err}
		}
	}
	return &Error{Kind: Transient, Err: err}
}

func isBilling(msg string) bool {
	for _, m := range billingMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
