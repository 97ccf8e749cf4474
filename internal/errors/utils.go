package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// JoinErrors folds multiple errors from an independent batch (e.g. a scan
// pass that skips several files) into a single internal error.
func JoinErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}
	return Internal(fmt.Sprintf("multiple errors occurred: %s", strings.Join(messages, "; ")), nonNil[0])
}

// AsAppError extracts the *AppError in err's chain, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FormatErrorChain renders an error plus its stack trace (if captured) and
// its cause chain, for log lines where a one-word Err() isn't enough.
func FormatErrorChain(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString(err.Error())

	if appErr, ok := AsAppError(err); ok && len(appErr.Stack) > 0 {
		b.WriteString("\nstack:\n")
		for _, frame := range appErr.Stack {
			b.WriteString("  ")
			b.WriteString(frame)
			b.WriteString("\n")
		}
	}

	if cause := stderrors.Unwrap(err); cause != nil {
		b.WriteString("\ncaused by: ")
		b.WriteString(FormatErrorChain(cause))
	}

	return b.String()
}
