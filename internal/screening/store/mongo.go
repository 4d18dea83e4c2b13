package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"screener/internal/screening/models"
	"screener/pkg/requestcontext"
)

// CollectionName is the collection holding screened people.
const CollectionName = "person"

// identityIndexName names the unique index on the identity triple.
const identityIndexName = "person_identity_unique"

// personDocument is the stored BSON shape.
type personDocument struct {
	Name         string    `bson:"name"`
	DOB          string    `bson:"dob"`
	Country      string    `bson:"country"`
	NameMatch    bool      `bson:"name_match"`
	DOBMatch     bool      `bson:"dob_match"`
	CountryMatch bool      `bson:"country_match"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoStore persists person records in MongoDB.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore uses the person collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique identity index so concurrent upserts of the
// same person cannot produce two documents.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "dob", Value: 1}, {Key: "country", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(identityIndexName),
	})
	if err != nil {
		return fmt.Errorf("create person identity index: %w", err)
	}
	return nil
}

// BulkUpsert writes all records in one unordered bulk write, so one failing
// record does not stop the rest.
func (s *MongoStore) BulkUpsert(ctx context.Context, records []models.ScreenedPerson) error {
	if len(records) == 0 {
		return nil
	}
	writes := upsertModels(records, requestcontext.Now(ctx).UTC())

	_, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err == nil {
		return nil
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		return persistenceErrorFromBulk(records, bwe)
	}
	return &PersistenceError{Attempted: len(records), Err: err}
}

// Find returns the stored record for an identity.
func (s *MongoStore) Find(ctx context.Context, id models.Identity) (*models.StoredPersonRecord, error) {
	var doc personDocument
	err := s.coll.FindOne(ctx, identityFilter(id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find person record: %w", err)
	}
	dob, err := models.ParseDate(doc.DOB)
	if err != nil {
		return nil, fmt.Errorf("decode person record dob: %w", err)
	}
	return &models.StoredPersonRecord{
		Name:         doc.Name,
		DOB:          dob,
		Country:      doc.Country,
		NameMatch:    doc.NameMatch,
		DOBMatch:     doc.DOBMatch,
		CountryMatch: doc.CountryMatch,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

// Health pings the deployment.
func (s *MongoStore) Health(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func identityFilter(id models.Identity) bson.D {
	return bson.D{
		{Key: "name", Value: id.Name},
		{Key: "dob", Value: id.DOB.String()},
		{Key: "country", Value: id.Country},
	}
}

// upsertModels builds one atomic upsert per record: $set for identity, verdict
// and updated_at, $setOnInsert for created_at.
func upsertModels(records []models.ScreenedPerson, now time.Time) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		update := bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "name", Value: r.Identity.Name},
				{Key: "dob", Value: r.Identity.DOB.String()},
				{Key: "country", Value: r.Identity.Country},
				{Key: "name_match", Value: r.Verdict.NameMatch},
				{Key: "dob_match", Value: r.Verdict.DOBMatch},
				{Key: "country_match", Value: r.Verdict.CountryMatch},
				{Key: "updated_at", Value: now},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "created_at", Value: now},
			}},
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(identityFilter(r.Identity)).
			SetUpdate(update).
			SetUpsert(true))
	}
	return writes
}

// persistenceErrorFromBulk maps write errors back to the records by index.
func persistenceErrorFromBulk(records []models.ScreenedPerson, bwe mongo.BulkWriteException) *PersistenceError {
	pe := &PersistenceError{Attempted: len(records)}
	for _, we := range bwe.WriteErrors {
		failure := RecordFailure{Err: we.WriteError}
		if we.Index >= 0 && we.Index < len(records) {
			failure.Key = records[we.Index].Key
		}
		pe.Failures = append(pe.Failures, failure)
	}
	return pe
}
