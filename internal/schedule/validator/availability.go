package validator

import (
	"fmt"
	"strings"

	"medsched/pkg/logger"
	"medsched/pkg/model"
	"medsched/pkg/timeutil"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock_time", validateClockTime); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}

	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

// validateClockTime accepts HH:MM and HH:MM:SS time-of-day strings.
func validateClockTime(fl validator.FieldLevel) bool {
	_, err := timeutil.ParseClock(fl.Field().String())
	return err == nil
}

func (av *AvailabilityValidator) ValidateRow(row *model.AvailabilityRow) error {
	err := av.validate.Struct(row)
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Message: messageForTag(fe),
			})
		}
		return validationErrors
	}
	return err
}

// ValidateRows validates every row and additionally rejects rows whose
// window end is not after its start.
func (av *AvailabilityValidator) ValidateRows(rows []model.AvailabilityRow) error {
	var validationErrors ValidationErrors

	for i, row := range rows {
		if err := av.ValidateRow(&rows[i]); err != nil {
			if ve, ok := err.(ValidationErrors); ok {
				for _, e := range ve {
					e.Field = fmt.Sprintf("rows[%d].%s", i, e.Field)
					validationErrors = append(validationErrors, e)
				}
				continue
			}
			return err
		}

		start, errStart := timeutil.ParseClock(row.WindowStart)
		end, errEnd := timeutil.ParseClock(row.WindowEnd)
		if errStart == nil && errEnd == nil && end <= start {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fmt.Sprintf("rows[%d].WindowEnd", i),
				Message: "must be after WindowStart",
			})
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "clock_time":
		return "must be an HH:MM or HH:MM:SS time"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
