package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"bureau/pkg/logger"
	"bureau/pkg/model"

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

func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

// CatalogValidator checks availability templates and event types before
// they are stored.
type CatalogValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCatalogValidator(log *logger.Logger) *CatalogValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("clock", validateClock); err != nil {
		log.Fatal("Failed to register 'clock' validator", "error", err)
	}
	if err := v.RegisterValidation("iso_weekday", validateWeekday); err != nil {
		log.Fatal("Failed to register 'iso_weekday' validator", "error", err)
	}
	v.RegisterStructValidation(validateTimeRange, model.WeeklyAvailabilityTemplate{})

	log.Info("Catalog validator initialized successfully")

	return &CatalogValidator{
		validate: v,
		logger:   log,
	}
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.ClockLayout, fl.Field().String())
	return err == nil
}

func validateWeekday(fl validator.FieldLevel) bool {
	day := fl.Field().Int()
	return day >= 1 && day <= 7
}

// validateTimeRange reports end_time when the window is empty or inverted.
// Malformed clocks are already reported by the field rules.
func validateTimeRange(sl validator.StructLevel) {
	t := sl.Current().Interface().(model.WeeklyAvailabilityTemplate)
	start, err := time.Parse(model.ClockLayout, t.StartTime)
	if err != nil {
		return
	}
	end, err := time.Parse(model.ClockLayout, t.EndTime)
	if err != nil {
		return
	}
	if !start.Before(end) {
		sl.ReportError(t.EndTime, "end_time", "EndTime", "valid_time_range", "")
	}
}

func (v *CatalogValidator) ValidateTemplate(t *model.WeeklyAvailabilityTemplate) error {
	return v.check(t)
}

func (v *CatalogValidator) ValidateEventType(et *model.EventType) error {
	return v.check(et)
}

func (v *CatalogValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *CatalogValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "clock":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
		case "iso_weekday":
			message = fmt.Sprintf("%s must be between 1 (Monday) and 7 (Sunday)", err.Field())
		case "valid_time_range":
			message = "end_time must be after start_time"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
