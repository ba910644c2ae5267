package mongo

import (
	"context"
	"fmt"

	"bureau/internal/intervals/mongostore"
	"bureau/internal/migrations/mongo/validators"
	"bureau/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "advisor_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "start_time", Value: 1}, {Key: "end_time", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "cancel_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	RoomsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "site", Value: 1}, {Key: "position", Value: 1}}},
	}

	TemplatesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "advisor_id", Value: 1}, {Key: "weekday", Value: 1}}},
	}

	AvailabilityBlocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "advisor_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// RunMigration creates every collection with its validator and indexes.
// Collections must exist before the first transaction touches them.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := map[string]collectionDef{
		mongostore.BookingsCollection:           {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		mongostore.GuardsCollection:             {Validator: validators.GuardValidator},
		mongostore.EventTypesCollection:         {Validator: validators.EventTypeValidator},
		mongostore.AdvisorsCollection:           {Validator: validators.AdvisorValidator},
		mongostore.GroupsCollection:             {Validator: validators.GroupValidator},
		mongostore.RoomsCollection:              {Indexes: RoomsIndexes, Validator: validators.RoomValidator},
		mongostore.TemplatesCollection:          {Indexes: TemplatesIndexes, Validator: validators.TemplateValidator},
		mongostore.AvailabilityBlocksCollection: {Indexes: AvailabilityBlocksIndexes, Validator: validators.AvailabilityBlockValidator},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating collection validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	return nil
}
