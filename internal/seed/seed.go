// Package seed loads catalog fixtures (event types, advisors, groups, rooms,
// templates and availability blocks) from a JSON file.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"bureau/internal/availability"
	"bureau/internal/availability/validator"
	"bureau/internal/intervals"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"github.com/goccy/go-json"
)

// Credential carries the tokens model.Credential hides from JSON.
type Credential struct {
	AdvisorID    string    `json:"advisor_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Fixture struct {
	EventTypes         []model.EventType                  `json:"event_types"`
	Advisors           []model.Advisor                    `json:"advisors"`
	Groups             []model.Group                      `json:"groups"`
	Rooms              []model.Room                       `json:"rooms"`
	Templates          []model.WeeklyAvailabilityTemplate `json:"templates"`
	AvailabilityBlocks []model.AvailabilityBlock          `json:"availability_blocks"`
	Credentials        []Credential                       `json:"credentials"`
}

func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return &f, nil
}

// Apply upserts the fixture. Templates go through the template service as
// an administrator, so they are validated like any other mutation.
func (f *Fixture) Apply(ctx context.Context, catalog intervals.Catalog, creds intervals.CredentialStore, log *logger.Logger) error {
	v := validator.NewCatalogValidator(log)
	for _, et := range f.EventTypes {
		if err := v.ValidateEventType(&et); err != nil {
			return fmt.Errorf("event type %s: %w", et.ID, err)
		}
		if err := catalog.SaveEventType(ctx, et); err != nil {
			return fmt.Errorf("event type %s: %w", et.ID, err)
		}
	}
	// Stores keep credentials granted since the last seed.
	for _, a := range f.Advisors {
		if err := catalog.SaveAdvisor(ctx, a); err != nil {
			return fmt.Errorf("advisor %s: %w", a.ID, err)
		}
	}
	for _, g := range f.Groups {
		if err := catalog.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
	}
	for i, r := range f.Rooms {
		if r.Position == 0 {
			r.Position = i + 1
		}
		if err := catalog.SaveRoom(ctx, r); err != nil {
			return fmt.Errorf("room %s: %w", r.ID, err)
		}
	}

	templates := availability.NewTemplateService(catalog, v, log)
	admin := availability.Actor{Admin: true}
	for _, t := range f.Templates {
		if _, err := templates.Add(ctx, admin, t); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}

	for _, b := range f.AvailabilityBlocks {
		if !b.Interval.Valid() {
			return fmt.Errorf("availability block %s: start must precede end", b.ID)
		}
		if err := catalog.SaveAvailabilityBlock(ctx, b); err != nil {
			return fmt.Errorf("availability block %s: %w", b.ID, err)
		}
	}
	for _, c := range f.Credentials {
		cred := model.Credential{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken, ExpiresAt: c.ExpiresAt}
		if err := creds.SaveCredential(ctx, c.AdvisorID, cred); err != nil {
			return fmt.Errorf("credential for %s: %w", c.AdvisorID, err)
		}
	}

	log.Info("Seed applied",
		"event_types", len(f.EventTypes),
		"advisors", len(f.Advisors),
		"groups", len(f.Groups),
		"rooms", len(f.Rooms),
		"templates", len(f.Templates),
		"availability_blocks", len(f.AvailabilityBlocks),
		"credentials", len(f.Credentials),
	)
	return nil
}
