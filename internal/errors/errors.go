package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Kind classifies the errors the tracking engine can surface (spec §7).
const (
	KindNotFound        = "not_found"
	KindTooLarge        = "too_large"
	KindPatternRejected = "pattern_rejected"
	KindBusy            = "busy"
	KindQuotaExhausted  = "quota_exhausted"
	KindCorrupt         = "corrupt"
	KindIO              = "io"
	KindInvalidConfig   = "invalid_config"
	KindAmbiguous       = "ambiguous_checksum"
	KindInternal        = "internal"
)

// AppError is the error type returned across the core/HTTP boundary. The
// wire representation is just {"message": "..."}; Kind and Code drive
// dispatch on the Go side and are never serialized.
type AppError struct {
	Kind    string `json:"-"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
	Code    int    `json:"-"`
	Stack   []string `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStack captures the current call stack for debugging. The Corrupt,
// IO and Internal constructors attach it to every error they build.
func (e *AppError) WithStack() *AppError {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	e.Stack = stack
	return e
}

func New(kind, message string, cause error, code int) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause, Code: code}
}

func Newf(kind string, code int, cause error, format string, args ...any) *AppError {
	return New(kind, fmt.Sprintf(format, args...), cause, code)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Constructors for the kinds named in spec §7.

func NotFound(what string) *AppError {
	return New(KindNotFound, fmt.Sprintf("not found: %s", what), nil, http.StatusNotFound)
}

func TooLarge(path string, size, limit int64) *AppError {
	return New(KindTooLarge, fmt.Sprintf("%s exceeds max_file_size (%d > %d)", path, size, limit), nil, http.StatusBadRequest)
}

func PatternRejected(path string) *AppError {
	return New(KindPatternRejected, fmt.Sprintf("path rejected by watch patterns: %s", path), nil, http.StatusBadRequest)
}

func Busy(what string) *AppError {
	return New(KindBusy, fmt.Sprintf("busy: %s", what), nil, http.StatusConflict)
}

func QuotaExhausted(file string) *AppError {
	return New(KindQuotaExhausted, fmt.Sprintf("quota pressure: cannot trim last entry for %s", file), nil, http.StatusInsufficientStorage)
}

func Corrupt(what string, cause error) *AppError {
	return New(KindCorrupt, fmt.Sprintf("corrupt: %s", what), cause, http.StatusInternalServerError).WithStack()
}

func IO(message string, cause error) *AppError {
	return New(KindIO, message, cause, http.StatusInternalServerError).WithStack()
}

func InvalidConfig(field, reason string) *AppError {
	return New(KindInvalidConfig, fmt.Sprintf("invalid config %s: %s", field, reason), nil, http.StatusBadRequest)
}

func AmbiguousChecksum(prefix string) *AppError {
	return New(KindAmbiguous, fmt.Sprintf("ambiguous checksum prefix: %s", prefix), nil, http.StatusConflict)
}

func Internal(message string, cause error) *AppError {
	return New(KindInternal, message, cause, http.StatusInternalServerError).WithStack()
}

// Wrap preserves kind/code of an existing AppError while describing it at a
// higher level; anything else becomes an internal error.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return New(appErr.Kind, message, appErr, appErr.Code)
	}
	return Internal(message, err)
}

// Err writes err as the {"message": ...} HTTP body the spec requires.
func Err(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, appErr)
		return
	}
	c.JSON(http.StatusInternalServerError, &AppError{Message: err.Error()})
}
