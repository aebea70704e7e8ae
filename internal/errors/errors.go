package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/keepup/internal/logger"
)

var (
	// ErrNotSignedIn is returned when an operation needs a session and none is active
	ErrNotSignedIn = stderrors.New("not signed in")
	// ErrHabitNotFound is returned when a habit does not exist or belongs to another user
	ErrHabitNotFound = stderrors.New("habit not found")
	// ErrAlreadyCompletedToday is returned when a habit was already completed on the local day
	ErrAlreadyCompletedToday = stderrors.New("already completed today")
	// ErrAlreadyCompletedThisPeriod is returned when a weekly/monthly habit was already completed this period
	ErrAlreadyCompletedThisPeriod = stderrors.New("already completed this period")
	// ErrInvalidCredentials is returned on a failed sign-in
	ErrInvalidCredentials = stderrors.New("invalid email or password")
)

// FieldError is a single invalid input field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects invalid input fields. It is reported inline and never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field errors were collected
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// UserMessage converts an error into the text shown to the user
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &verr):
		return verr.Error()
	case stderrors.Is(err, ErrNotSignedIn):
		return "You are not signed in. Run 'keepup login' first."
	case stderrors.Is(err, ErrAlreadyCompletedToday):
		return "Already completed 🔥 You've already completed this habit today."
	case stderrors.Is(err, ErrAlreadyCompletedThisPeriod):
		return "Already completed 🔥 You've already completed this habit for this period."
	default:
		return err.Error()
	}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %s", UserMessage(err))
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1.
// Lost sessions are expected and not logged as failures.
func Fatal(err error) {
	if err == nil {
		return
	}
	if !stderrors.Is(err, ErrNotSignedIn) {
		logger.Error("Command execution failed", "error", err)
	}
	fmt.Fprintf(os.Stderr, "%s\n", Format(err))
	os.Exit(1)
}
