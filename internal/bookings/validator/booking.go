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

// Fields maps field names to messages for the error details.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateBookingRequest, model.BookingRequest{})
	v.RegisterStructValidation(validateRescheduleRequest, model.RescheduleRequest{})
	v.RegisterStructValidation(validateAvailabilityQuery, model.AvailabilityQuery{})

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// Slots start on whole minutes.
func onMinute(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0
}

func validateBookingRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(model.BookingRequest)
	if !req.Start.IsZero() && !onMinute(req.Start) {
		sl.ReportError(req.Start, "start", "Start", "minute", "")
	}
}

func validateRescheduleRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(model.RescheduleRequest)
	if !req.Start.IsZero() && !onMinute(req.Start) {
		sl.ReportError(req.Start, "start", "Start", "minute", "")
	}
}

func validateAvailabilityQuery(sl validator.StructLevel) {
	q := sl.Current().Interface().(model.AvailabilityQuery)
	if !q.Start.IsZero() && !onMinute(q.Start) {
		sl.ReportError(q.Start, "start", "Start", "minute", "")
	}
}

func (v *BookingValidator) Validate(req *model.BookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateReschedule(req *model.RescheduleRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateQuery(q *model.AvailabilityQuery) error {
	return v.check(q)
}

func (v *BookingValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// ValidateWindow checks start against the booking horizon of et at now.
// The horizon end is inclusive.
func (v *BookingValidator) ValidateWindow(start time.Time, et *model.EventType, now time.Time) error {
	if start.Before(now) {
		return ValidationErrors{
			ValidationError{
				Field:   "start",
				Message: "start cannot be in the past",
			},
		}
	}
	if horizon := et.Horizon(now); start.After(horizon) {
		return ValidationErrors{
			ValidationError{
				Field:   "start",
				Message: fmt.Sprintf("start is beyond the %d month booking horizon", et.BookingHorizonMonths),
			},
		}
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +14155550100)", err.Field())
		case "minute":
			message = fmt.Sprintf("%s must be on a whole minute", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
