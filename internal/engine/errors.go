package engine

import (
	"fmt"
	"strconv"
	"time"
)

// ErrorCode classifies a playback failure.
type ErrorCode int

const (
	ErrorCodeUnspecified                 ErrorCode = 1000
	ErrorCodeRemoteError                 ErrorCode = 1001
	ErrorCodeBehindLiveWindow            ErrorCode = 1002
	ErrorCodeTimeout                     ErrorCode = 1003
	ErrorCodeFailedRuntimeCheck          ErrorCode = 1004
	ErrorCodeIONetworkConnectionFailed   ErrorCode = 2001
	ErrorCodeIONetworkConnectionTimeout  ErrorCode = 2002
	ErrorCodeIOInvalidHTTPContentType    ErrorCode = 2003
	ErrorCodeIOBadHTTPStatus             ErrorCode = 2004
	ErrorCodeIOFileNotFound              ErrorCode = 2005
	ErrorCodeParsingContainerMalformed   ErrorCode = 3001
	ErrorCodeParsingManifestMalformed    ErrorCode = 3002
	ErrorCodeParsingContainerUnsupported ErrorCode = 3003
	ErrorCodeParsingManifestUnsupported  ErrorCode = 3004
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeUnspecified:                 "ERROR_CODE_UNSPECIFIED",
	ErrorCodeRemoteError:                 "ERROR_CODE_REMOTE_ERROR",
	ErrorCodeBehindLiveWindow:            "ERROR_CODE_BEHIND_LIVE_WINDOW",
	ErrorCodeTimeout:                     "ERROR_CODE_TIMEOUT",
	ErrorCodeFailedRuntimeCheck:          "ERROR_CODE_FAILED_RUNTIME_CHECK",
	ErrorCodeIONetworkConnectionFailed:   "ERROR_CODE_IO_NETWORK_CONNECTION_FAILED",
	ErrorCodeIONetworkConnectionTimeout:  "ERROR_CODE_IO_NETWORK_CONNECTION_TIMEOUT",
	ErrorCodeIOInvalidHTTPContentType:    "ERROR_CODE_IO_INVALID_HTTP_CONTENT_TYPE",
	ErrorCodeIOBadHTTPStatus:             "ERROR_CODE_IO_BAD_HTTP_STATUS",
	ErrorCodeIOFileNotFound:              "ERROR_CODE_IO_FILE_NOT_FOUND",
	ErrorCodeParsingContainerMalformed:   "ERROR_CODE_PARSING_CONTAINER_MALFORMED",
	ErrorCodeParsingManifestMalformed:    "ERROR_CODE_PARSING_MANIFEST_MALFORMED",
	ErrorCodeParsingContainerUnsupported: "ERROR_CODE_PARSING_CONTAINER_UNSUPPORTED",
	ErrorCodeParsingManifestUnsupported:  "ERROR_CODE_PARSING_MANIFEST_UNSUPPORTED",
}

// String returns the canonical error code name.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "ERROR_CODE_" + strconv.Itoa(int(c))
}

// IsTransientNetwork reports whether the code is one of the network failures
// that the player keeps waiting on rather than treating as terminal.
func (c ErrorCode) IsTransientNetwork() bool {
	return c == ErrorCodeIONetworkConnectionFailed || c == ErrorCodeIONetworkConnectionTimeout
}

// PlaybackError is a failure reported by an engine.
type PlaybackError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewPlaybackError wraps err with a code.
func NewPlaybackError(code ErrorCode, err error) *PlaybackError {
	msg := code.String()
	if err != nil {
		msg = err.Error()
	}
	return &PlaybackError{Code: code, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// DataType identifies what a loader was fetching when it failed.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeManifest
	DataTypeMedia
)

// LoadErrorInfo describes a failed load attempt.
type LoadErrorInfo struct {
	DataType   DataType
	Err        *PlaybackError
	ErrorCount int
}

// FallbackOptions describes the alternatives a loader could fall back to.
type FallbackOptions struct {
	NumberOfLocations         int
	NumberOfExcludedLocations int
	NumberOfTracks            int
	NumberOfExcludedTracks    int
}

// FallbackSelection is a decision to exclude a location or track for a while.
type FallbackSelection struct {
	Type     FallbackType
	Duration time.Duration
}

// FallbackType is the kind of alternative a fallback excludes.
type FallbackType int

const (
	FallbackTypeLocation FallbackType = iota + 1
	FallbackTypeTrack
)

// LoadErrorHandlingPolicy decides how a loader reacts to load failures.
type LoadErrorHandlingPolicy interface {
	// FallbackSelectionFor returns nil when no fallback should be used.
	FallbackSelectionFor(opts FallbackOptions, info LoadErrorInfo) *FallbackSelection
	// RetryDelayFor returns TimeUnset when the error must not be retried.
	RetryDelayFor(info LoadErrorInfo) time.Duration
	MinimumLoadableRetryCount(dataType DataType) int
}
