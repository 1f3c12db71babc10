package domain

import (
	"encoding/json"
	"regexp"
)

// Outcome tags an action Result.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeRedirect Outcome = "redirect"
)

// Result is the outcome of one action invocation. Exactly one of Data,
// Error or RedirectTo is meaningful, selected by Outcome.
type Result struct {
	Outcome    Outcome
	Data       any
	Error      *ClassifiedError
	RedirectTo string
}

// Success creates a successful result.
func Success(data any) *Result {
	return &Result{Outcome: OutcomeSuccess, Data: data}
}

// Failure creates a failed result.
func Failure(err ClassifiedError) *Result {
	return &Result{Outcome: OutcomeFailure, Error: &err}
}

// Redirect creates a result instructing the caller to navigate to location.
func Redirect(location string) *Result {
	return &Result{Outcome: OutcomeRedirect, RedirectTo: location}
}

// Valid reports whether exactly the field selected by Outcome is populated.
func (r *Result) Valid() bool {
	if r == nil {
		return false
	}
	switch r.Outcome {
	case OutcomeSuccess:
		return r.Error == nil && r.RedirectTo == ""
	case OutcomeFailure:
		return r.Error != nil && r.Data == nil && r.RedirectTo == ""
	case OutcomeRedirect:
		return r.RedirectTo != "" && r.Data == nil && r.Error == nil
	default:
		return false
	}
}

// MarshalJSON renders the result in the wire shape returned to callers.
func (r *Result) MarshalJSON() ([]byte, error) {
	switch r.Outcome {
	case OutcomeFailure:
		return json.Marshal(struct {
			ServerError string    `json:"serverError"`
			Kind        ErrorKind `json:"kind"`
		}{r.Error.Message, r.Error.Kind})
	case OutcomeRedirect:
		return json.Marshal(struct {
			Redirect string `json:"redirect"`
		}{r.RedirectTo})
	default:
		return json.Marshal(struct {
			Data any `json:"data"`
		}{r.Data})
	}
}

var actionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Metadata describes the action being invoked. It is used for logging and
// auditing only, never for authorization.
type Metadata struct {
	ActionName string `json:"actionName"`
}

// Validate checks the metadata against its schema.
func (m Metadata) Validate() error {
	if m.ActionName == "" {
		return &MetadataError{Reason: "actionName is required"}
	}
	if !actionNamePattern.MatchString(m.ActionName) {
		return &MetadataError{Reason: "actionName must be lower-case kebab-case: " + m.ActionName}
	}
	return nil
}
