package availability

import (
	"context"
	"errors"

	"bureau/internal/availability/validator"
	"bureau/internal/intervals"
	apperrors "bureau/pkg/errors"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"github.com/google/uuid"
)

// Actor is whoever mutates a template. Non-admin actors act on their own
// advisor only and cannot touch locked templates.
type Actor struct {
	AdvisorID string
	Admin     bool
}

type TemplateService struct {
	catalog   intervals.Catalog
	validator *validator.CatalogValidator
	log       *logger.Logger
}

func NewTemplateService(catalog intervals.Catalog, validator *validator.CatalogValidator, log *logger.Logger) *TemplateService {
	return &TemplateService{catalog: catalog, validator: validator, log: log}
}

func (s *TemplateService) authorize(actor Actor, t *model.WeeklyAvailabilityTemplate) error {
	if actor.Admin {
		return nil
	}
	if actor.AdvisorID == "" || actor.AdvisorID != t.AdvisorID {
		return apperrors.Forbidden("templates can only be changed by their advisor")
	}
	if t.Locked {
		return apperrors.Forbidden("template is locked")
	}
	return nil
}

// Add creates or replaces a template.
func (s *TemplateService) Add(ctx context.Context, actor Actor, t model.WeeklyAvailabilityTemplate) (*model.WeeklyAvailabilityTemplate, error) {
	if err := s.validator.ValidateTemplate(&t); err != nil {
		s.log.Warn("Template validation failed", "template_id", t.ID, "advisor_id", t.AdvisorID, "error", err)
		return nil, catalogValidationError("Invalid template", err)
	}
	if err := s.authorize(actor, &t); err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else {
		existing, err := s.catalog.Template(ctx, t.ID)
		switch {
		case errors.Is(err, intervals.ErrNotFound):
		case err != nil:
			return nil, apperrors.Internal("failed to load template", err)
		default:
			if err := s.authorize(actor, existing); err != nil {
				return nil, err
			}
		}
	}

	if _, err := s.catalog.Advisor(ctx, t.AdvisorID); err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("advisor", t.AdvisorID)
		}
		return nil, apperrors.Internal("failed to load advisor", err)
	}

	if err := s.catalog.SaveTemplate(ctx, t); err != nil {
		return nil, apperrors.Internal("failed to save template", err)
	}
	s.log.Info("Template saved", "template_id", t.ID, "advisor_id", t.AdvisorID, "weekday", t.Weekday)
	return &t, nil
}

func (s *TemplateService) Remove(ctx context.Context, actor Actor, id string) error {
	t, err := s.catalog.Template(ctx, id)
	if errors.Is(err, intervals.ErrNotFound) {
		return apperrors.NotFoundWithID("template", id)
	}
	if err != nil {
		return apperrors.Internal("failed to load template", err)
	}
	if err := s.authorize(actor, t); err != nil {
		return err
	}
	if err := s.catalog.DeleteTemplate(ctx, id); err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("failed to delete template", err)
	}
	s.log.Info("Template removed", "template_id", id, "advisor_id", t.AdvisorID)
	return nil
}

func (s *TemplateService) List(ctx context.Context, advisorID string) ([]model.WeeklyAvailabilityTemplate, error) {
	ts, err := s.catalog.Templates(ctx, advisorID)
	if err != nil {
		return nil, apperrors.Internal("failed to load templates", err)
	}
	return ts, nil
}

func catalogValidationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, map[string]any{"fields": verrs.Fields()})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
