package mongostore

import (
	"context"
	"errors"
	"fmt"

	"bureau/internal/intervals"
	mongotx "bureau/pkg/db/mongo"
	"bureau/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) findOneInto(ctx context.Context, collection string, filter bson.M, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return intervals.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load from %s: %w", collection, err)
	}
	return nil
}

func (s *Store) findAll(ctx context.Context, collection string, filter bson.M, sort bson.D, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	cursor, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, collection, id string, doc any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save to %s: %w", collection, err)
	}
	return nil
}

func (s *Store) EventType(ctx context.Context, id string) (*model.EventType, error) {
	var et model.EventType
	if err := s.findOneInto(ctx, EventTypesCollection, bson.M{"_id": id}, &et); err != nil {
		return nil, err
	}
	return &et, nil
}

func (s *Store) SaveEventType(ctx context.Context, et model.EventType) error {
	return s.upsert(ctx, EventTypesCollection, et.ID, et)
}

func (s *Store) openAdvisor(a *model.Advisor) error {
	if a.Credential == nil {
		return nil
	}
	opened, err := intervals.OpenCredential(s.sealer, *a.Credential)
	if err != nil {
		return err
	}
	a.Credential = &opened
	return nil
}

func (s *Store) Advisor(ctx context.Context, id string) (*model.Advisor, error) {
	var a model.Advisor
	if err := s.findOneInto(ctx, AdvisorsCollection, bson.M{"_id": id}, &a); err != nil {
		return nil, err
	}
	if err := s.openAdvisor(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAdvisor upserts the advisor. A stored credential survives when a
// carries none.
func (s *Store) SaveAdvisor(ctx context.Context, a model.Advisor) error {
	if a.HasCredential() {
		sealed, err := intervals.SealCredential(s.sealer, *a.Credential)
		if err != nil {
			return err
		}
		a.Credential = &sealed
		return s.upsert(ctx, AdvisorsCollection, a.ID, a)
	}

	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	update := bson.M{"$set": bson.M{"name": a.Name, "email": a.Email}}
	_, err := s.db.Collection(AdvisorsCollection).UpdateOne(ctx, bson.M{"_id": a.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save to %s: %w", AdvisorsCollection, err)
	}
	return nil
}

func (s *Store) Credential(ctx context.Context, advisorID string) (*model.Credential, error) {
	a, err := s.Advisor(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	if a.Credential == nil {
		return nil, intervals.ErrNotFound
	}
	return a.Credential, nil
}

func (s *Store) SaveCredential(ctx context.Context, advisorID string, c model.Credential) error {
	sealed, err := intervals.SealCredential(s.sealer, c)
	if err != nil {
		return err
	}

	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	res, err := s.db.Collection(AdvisorsCollection).UpdateOne(ctx,
		bson.M{"_id": advisorID},
		bson.M{"$set": bson.M{"credential": sealed}},
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	if res.MatchedCount == 0 {
		return intervals.ErrNotFound
	}
	return nil
}

func (s *Store) Group(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	if err := s.findOneInto(ctx, GroupsCollection, bson.M{"_id": id}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SaveGroup(ctx context.Context, g model.Group) error {
	return s.upsert(ctx, GroupsCollection, g.ID, g)
}

func (s *Store) GroupAdvisors(ctx context.Context, groupID string) ([]model.Advisor, error) {
	g, err := s.Group(ctx, groupID)
	if errors.Is(err, intervals.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(g.AdvisorIDs) == 0 {
		return nil, nil
	}

	var found []model.Advisor
	if err := s.findAll(ctx, AdvisorsCollection, bson.M{"_id": bson.M{"$in": g.AdvisorIDs}}, bson.D{{Key: "_id", Value: 1}}, &found); err != nil {
		return nil, err
	}
	byID := make(map[string]model.Advisor, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	out := make([]model.Advisor, 0, len(g.AdvisorIDs))
	for _, id := range g.AdvisorIDs {
		a, ok := byID[id]
		if !ok {
			continue
		}
		if err := s.openAdvisor(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) Rooms(ctx context.Context, site string) ([]model.Room, error) {
	filter := bson.M{}
	if site != "" {
		filter["site"] = site
	}
	var rooms []model.Room
	if err := s.findAll(ctx, RoomsCollection, filter, bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}}, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) SaveRoom(ctx context.Context, r model.Room) error {
	return s.upsert(ctx, RoomsCollection, r.ID, r)
}

func (s *Store) Templates(ctx context.Context, advisorID string) ([]model.WeeklyAvailabilityTemplate, error) {
	var out []model.WeeklyAvailabilityTemplate
	sort := bson.D{{Key: "weekday", Value: 1}, {Key: "start_time", Value: 1}}
	if err := s.findAll(ctx, TemplatesCollection, bson.M{"advisor_id": advisorID}, sort, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Template(ctx context.Context, id string) (*model.WeeklyAvailabilityTemplate, error) {
	var t model.WeeklyAvailabilityTemplate
	if err := s.findOneInto(ctx, TemplatesCollection, bson.M{"_id": id}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t model.WeeklyAvailabilityTemplate) error {
	return s.upsert(ctx, TemplatesCollection, t.ID, t)
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	res, err := s.db.Collection(TemplatesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if res.DeletedCount == 0 {
		return intervals.ErrNotFound
	}
	return nil
}

func (s *Store) AvailabilityBlocks(ctx context.Context, advisorID string, window model.TimeInterval) ([]model.AvailabilityBlock, error) {
	filter := bson.M{
		"advisor_id": advisorID,
		"start_time": bson.M{"$lt": window.End},
		"end_time":   bson.M{"$gt": window.Start},
	}
	var out []model.AvailabilityBlock
	if err := s.findAll(ctx, AvailabilityBlocksCollection, filter, bson.D{{Key: "start_time", Value: 1}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveAvailabilityBlock(ctx context.Context, b model.AvailabilityBlock) error {
	if !b.Interval.Valid() {
		return model.ErrInvalidInterval
	}
	b.Interval = b.Interval.UTC()
	return s.upsert(ctx, AvailabilityBlocksCollection, b.ID, b)
}
