package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Job error kinds. Every failure of a training run is classified as one of
// these before it is written to the failure record.
const (
	KindConfiguration = "ConfigurationError"
	KindNoInputData   = "NoInputDataError"
	KindNoTestData    = "NoTestDataError"
	KindEngineStart   = "EngineStartError"
	KindDataImport    = "DataImportError"
	KindSearch        = "SearchError"
	KindPanic         = "PanicError"
	KindUnknown       = "Error"
)

// ConfigurationError is returned when the hyperparameter file is missing,
// malformed, lacks a required group, or names a column the data does not have.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("automl: %s: %s", KindConfiguration, e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("automl: %s: %s: %s", KindConfiguration, e.Key, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).
		Str("reason", e.Reason).
		Str("type", KindConfiguration)
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(key, reason string, err error) error {
	return errors.WithStack(&ConfigurationError{Key: key, Reason: reason, Err: err})
}

// NoInputDataError means the training channel resolved to no usable files.
type NoInputDataError struct {
	Channel string
	Dir     string
}

func (e *NoInputDataError) Error() string {
	return fmt.Sprintf("automl: %s: no input files found in channel %q (%s)", KindNoInputData, e.Channel, e.Dir)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *NoInputDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("channel", e.Channel).
		Str("dir", e.Dir).
		Str("type", KindNoInputData)
}

// NewNoInputDataError creates a NoInputDataError with a stack trace.
func NewNoInputDataError(channel, dir string) error {
	return errors.WithStack(&NoInputDataError{Channel: channel, Dir: dir})
}

// NoTestDataError means the testing channel resolved to no usable files.
type NoTestDataError struct {
	Channel string
	Dir     string
}

func (e *NoTestDataError) Error() string {
	return fmt.Sprintf("automl: %s: no test files found in channel %q (%s)", KindNoTestData, e.Channel, e.Dir)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *NoTestDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("channel", e.Channel).
		Str("dir", e.Dir).
		Str("type", KindNoTestData)
}

// NewNoTestDataError creates a NoTestDataError with a stack trace.
func NewNoTestDataError(channel, dir string) error {
	return errors.WithStack(&NoTestDataError{Channel: channel, Dir: dir})
}

// EngineStartError is returned when the compute engine rejects its options.
type EngineStartError struct {
	Reason string
	Err    error
}

func (e *EngineStartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("automl: %s: %s: %v", KindEngineStart, e.Reason, e.Err)
	}
	return fmt.Sprintf("automl: %s: %s", KindEngineStart, e.Reason)
}

func (e *EngineStartError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *EngineStartError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("reason", e.Reason).
		Str("type", KindEngineStart)
}

// NewEngineStartError creates an EngineStartError with a stack trace.
func NewEngineStartError(reason string, err error) error {
	return errors.WithStack(&EngineStartError{Reason: reason, Err: err})
}

// DataImportError is returned when a channel file cannot be parsed into a frame.
type DataImportError struct {
	Path string
	Err  error
}

func (e *DataImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("automl: %s: %s: %v", KindDataImport, e.Path, e.Err)
	}
	return fmt.Sprintf("automl: %s: %s", KindDataImport, e.Path)
}

func (e *DataImportError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DataImportError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("type", KindDataImport)
}

// NewDataImportError creates a DataImportError with a stack trace.
func NewDataImportError(path string, err error) error {
	return errors.WithStack(&DataImportError{Path: path, Err: err})
}

// SearchError is returned when the AutoML search produced no usable model.
type SearchError struct {
	Project string
	Reason  string
	Err     error
}

func (e *SearchError) Error() string {
	msg := fmt.Sprintf("automl: %s: %s: %s", KindSearch, e.Project, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SearchError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *SearchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("project", e.Project).
		Str("reason", e.Reason).
		Str("type", KindSearch)
}

// NewSearchError creates a SearchError with a stack trace.
func NewSearchError(project, reason string, err error) error {
	return errors.WithStack(&SearchError{Project: project, Reason: reason, Err: err})
}

// Kind reports the taxonomy name of err, looking through wrapping.
func Kind(err error) string {
	var (
		cfgErr    *ConfigurationError
		inputErr  *NoInputDataError
		testErr   *NoTestDataError
		engineErr *EngineStartError
		importErr *DataImportError
		searchErr *SearchError
		panicErr  *PanicError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &inputErr):
		return KindNoInputData
	case errors.As(err, &testErr):
		return KindNoTestData
	case errors.As(err, &engineErr):
		return KindEngineStart
	case errors.As(err, &importErr):
		return KindDataImport
	case errors.As(err, &searchErr):
		return KindSearch
	case errors.As(err, &panicErr):
		return KindPanic
	default:
		return KindUnknown
	}
}
