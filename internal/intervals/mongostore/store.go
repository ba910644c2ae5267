// Package mongostore is the MongoDB backend for intervals.Store, Catalog and
// CredentialStore.
//
// Commit and Move run inside a multi-document transaction (replica set
// required). Each transaction first bumps a guard document per advisor and
// room it touches, so two writers on the same resource always collide on a
// write conflict; the driver retries the loser, whose overlap check then
// sees the winner's booking and fails with intervals.ErrConflict.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bureau/internal/intervals"
	mongotx "bureau/pkg/db/mongo"
	"bureau/pkg/model"
	"bureau/pkg/sealer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingsCollection           = "Bookings"
	GuardsCollection             = "Booking_guards"
	EventTypesCollection         = "Event_types"
	AdvisorsCollection           = "Advisors"
	GroupsCollection             = "Groups"
	RoomsCollection              = "Rooms"
	TemplatesCollection          = "Weekly_templates"
	AvailabilityBlocksCollection = "Availability_blocks"
)

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Store struct {
	db        *mongo.Database
	bookings  *mongo.Collection
	guards    *mongo.Collection
	txManager mongotx.TransactionManager
	sealer    *sealer.Sealer
	opts      Options
}

var _ intervals.Backend = (*Store)(nil)

func New(db *mongo.Database, s *sealer.Sealer, opts Options) *Store {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Store{
		db:        db,
		bookings:  db.Collection(BookingsCollection),
		guards:    db.Collection(GuardsCollection),
		txManager: mongotx.NewTransactionManager(db.Client()),
		sealer:    s,
		opts:      opts,
	}
}

func scopeField(kind model.ResourceKind) (string, error) {
	switch kind {
	case model.ResourceAdvisor:
		return "advisor_id", nil
	case model.ResourceRoom:
		return "room_id", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

func overlapFilter(scope model.ResourceScope, iv model.TimeInterval, excludeID string) (bson.M, error) {
	field, err := scopeField(scope.Kind)
	if err != nil {
		return nil, err
	}
	filter := bson.M{
		field:        scope.ID,
		"status":     model.BookingStatusConfirmed,
		"start_time": bson.M{"$lt": iv.End},
		"end_time":   bson.M{"$gt": iv.Start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter, nil
}

func (s *Store) FindOverlapping(ctx context.Context, scope model.ResourceScope, iv model.TimeInterval, excludeID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	filter, err := overlapFilter(scope, iv, excludeID)
	if err != nil {
		return nil, err
	}
	cursor, err := s.bookings.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*model.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

func (s *Store) countOverlapping(ctx context.Context, scope model.ResourceScope, iv model.TimeInterval, excludeID string) (int64, error) {
	filter, err := overlapFilter(scope, iv, excludeID)
	if err != nil {
		return 0, err
	}
	n, err := s.bookings.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return n, nil
}

func (s *Store) FindFreeResources(ctx context.Context, candidates []model.ResourceScope, iv model.TimeInterval) ([]model.ResourceScope, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	free := make([]model.ResourceScope, 0, len(candidates))
	for _, c := range candidates {
		n, err := s.countOverlapping(ctx, c, iv, "")
		if err != nil {
			return nil, err
		}
		if n == 0 {
			free = append(free, c)
		}
	}
	return free, nil
}

// seedGuards creates missing guard documents outside the transaction, so
// the in-transaction update never races on an insert.
func (s *Store) seedGuards(ctx context.Context, scopes []model.ResourceScope) error {
	for _, scope := range scopes {
		_, err := s.guards.UpdateOne(ctx,
			bson.M{"_id": model.GuardKey(scope)},
			bson.M{"$setOnInsert": bson.M{"version": int64(0), "updated_at": time.Now().UTC()}},
			options.Update().SetUpsert(true),
		)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to seed booking guard: %w", err)
		}
	}
	return nil
}

func (s *Store) lockScopes(sc mongo.SessionContext, scopes []model.ResourceScope) error {
	for _, scope := range scopes {
		_, err := s.guards.UpdateOne(sc,
			bson.M{"_id": model.GuardKey(scope)},
			bson.M{"$inc": bson.M{"version": int64(1)}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureFree(sc mongo.SessionContext, scopes []model.ResourceScope, iv model.TimeInterval, excludeID string) error {
	for _, scope := range scopes {
		n, err := s.countOverlapping(sc, scope, iv, excludeID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s %s", intervals.ErrConflict, scope.Kind, scope.ID)
		}
	}
	return nil
}

func (s *Store) Commit(ctx context.Context, b *model.Booking) error {
	if !b.Interval.Valid() {
		return model.ErrInvalidInterval
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	scopes := intervals.Scopes(b)
	if err := s.seedGuards(ctx, scopes); err != nil {
		return err
	}

	doc := *b
	doc.Interval = b.Interval.UTC()
	return s.txManager.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.lockScopes(sc, scopes); err != nil {
			return err
		}
		if err := s.ensureFree(sc, scopes, doc.Interval, ""); err != nil {
			return err
		}
		if _, err := s.bookings.InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: duplicate booking id or cancel token", intervals.ErrConflict)
			}
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return nil
	})
}

func (s *Store) Move(ctx context.Context, id string, to model.TimeInterval, at time.Time) (*model.Booking, error) {
	if !to.Valid() {
		return nil, model.ErrInvalidInterval
	}
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsConfirmed() {
		return nil, intervals.ErrNotConfirmed
	}
	scopes := intervals.Scopes(current)
	if err := s.seedGuards(ctx, scopes); err != nil {
		return nil, err
	}

	to = to.UTC()
	stamp := at.UTC().Truncate(time.Millisecond)
	var moved *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.lockScopes(sc, scopes); err != nil {
			return err
		}
		if err := s.ensureFree(sc, scopes, to, id); err != nil {
			return err
		}
		res := s.bookings.FindOneAndUpdate(sc,
			bson.M{"_id": id, "status": model.BookingStatusConfirmed},
			bson.M{"$set": bson.M{"start_time": to.Start, "end_time": to.End, "updated_at": stamp}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		)
		var b model.Booking
		if err := res.Decode(&b); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				// The booking exists (loaded above), so it was cancelled meanwhile.
				return intervals.ErrNotConfirmed
			}
			return fmt.Errorf("failed to move booking: %w", err)
		}
		moved = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *Store) Cancel(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	stamp := at.UTC().Truncate(time.Millisecond)
	res := s.bookings.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.BookingStatusConfirmed},
		bson.M{"$set": bson.M{
			"status":       model.BookingStatusCancelled,
			"cancelled_at": stamp,
			"updated_at":   stamp,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var b model.Booking
	err := res.Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Already cancelled, or unknown.
		return s.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	return &b, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByToken(ctx context.Context, cancelToken string) (*model.Booking, error) {
	return s.findOne(ctx, bson.M{"cancel_token": cancelToken})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	var b model.Booking
	if err := s.bookings.FindOne(ctx, filter).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, intervals.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &b, nil
}
