package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/julianstephens/keepup/internal/constants"
	apperrors "github.com/julianstephens/keepup/internal/errors"
	"github.com/julianstephens/keepup/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// HabitInput is the user-supplied form for a new habit
type HabitInput struct {
	Title       string `validate:"required,max=100"`
	Description string `validate:"required,max=500"`
	Frequency   string `validate:"required"`
}

// Credentials is the sign-up / sign-in form
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

var fieldLabels = map[string]string{
	"Title":       "Title",
	"Description": "Description",
	"Frequency":   "Frequency",
	"Email":       "Email",
	"Password":    "Password",
}

// Habit trims and validates a habit form and parses its frequency. Every
// invalid field is reported in the returned *errors.ValidationError.
func Habit(in HabitInput) (HabitInput, models.Frequency, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Frequency = strings.TrimSpace(in.Frequency)

	verr := structErrors(in)

	var freq models.Frequency
	if in.Frequency != "" {
		var err error
		freq, err = models.ParseFrequency(in.Frequency)
		if err != nil {
			verr.Add("frequency", fmt.Sprintf("Frequency must be daily, weekly, monthly, or every N days/weeks/months (max %d)", constants.MaxCustomEvery))
		}
	}

	return in, freq, verr.OrNil()
}

// Credential normalizes the email and validates both fields
func Credential(in Credentials) (Credentials, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in, structErrors(in).OrNil()
}

func structErrors(s any) *apperrors.ValidationError {
	verr := &apperrors.ValidationError{}
	err := validate.Struct(s)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(strings.ToLower(fe.Field()), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "email":
		return label + " must be a valid email address"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
