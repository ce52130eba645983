// Package registry persists file records and validation sessions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/models"
)

const fileCollection = "files"

// ListOptions controls filtering, ordering, and pagination of file listings.
type ListOptions struct {
	// Search is a case-insensitive substring match on the filename.
	Search string
	// SortBy is one of date (newest first), name (alphabetical), or size
	// (largest first).
	SortBy string
	// Tags restricts results to files carrying every listed tag.
	Tags   []string
	Limit  int
	Offset int
}

// Stats summarizes the registry contents.
type Stats struct {
	TotalFiles   int64                       `json:"total_files"`
	TotalSize    int64                       `json:"total_size_bytes"`
	TotalChunks  int64                       `json:"total_chunks"`
	StatusCounts map[models.FileStatus]int64 `json:"status_counts"`
}

// FileStore persists file records. Implementations validate status
// transitions against the lifecycle state machine.
type FileStore interface {
	Create(ctx context.Context, rec *models.FileRecord) error
	Get(ctx context.Context, filename string) (*models.FileRecord, error)
	Exists(ctx context.Context, filename string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]*models.FileRecord, int64, error)
	Update(ctx context.Context, rec *models.FileRecord) error
	SetStatus(ctx context.Context, filename string, to models.FileStatus) error
	Delete(ctx context.Context, filename string) error
	Stats(ctx context.Context) (*Stats, error)
}

// MongoFileStore implements FileStore on a MongoDB collection keyed by the
// cleaned filename.
type MongoFileStore struct {
	collection *mongo.Collection
}

// NewMongoFileStore creates a MongoFileStore over the named database.
func NewMongoFileStore(db *mongo.Database) *MongoFileStore {
	return &MongoFileStore{collection: db.Collection(fileCollection)}
}

// Create inserts a new file record. An existing record with the same
// filename is a conflict.
func (s *MongoFileStore) Create(ctx context.Context, rec *models.FileRecord) error {
	_, err := s.collection.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return errs.Conflictf("file '%s' already exists", rec.Filename)
	}
	return err
}

// Get retrieves a file record by its cleaned filename.
func (s *MongoFileStore) Get(ctx context.Context, filename string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": filename}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFoundf("file '%s' not found", filename)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Exists reports whether a record with the filename is present.
func (s *MongoFileStore) Exists(ctx context.Context, filename string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": filename})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns matching records and the total count before pagination.
func (s *MongoFileStore) List(ctx context.Context, opts ListOptions) ([]*models.FileRecord, int64, error) {
	filter := bson.M{"status": bson.M{"$ne": models.StatusDeleted}}
	if opts.Search != "" {
		filter["_id"] = bson.M{"$regex": primitive.Regex{
			Pattern: regexQuote(opts.Search),
			Options: "i",
		}}
	}
	if len(opts.Tags) > 0 {
		filter["tags"] = bson.M{"$all": opts.Tags}
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().SetSort(sortSpec(opts.SortBy))
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var recs []*models.FileRecord
	if err = cursor.All(ctx, &recs); err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// Update overwrites the mutable fields of an existing record.
func (s *MongoFileStore) Update(ctx context.Context, rec *models.FileRecord) error {
	rec.LastModified = time.Now().UTC()
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": rec.Filename}, rec)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFoundf("file '%s' not found", rec.Filename)
	}
	return nil
}

// SetStatus moves a record through the lifecycle state machine, rejecting
// transitions the machine does not allow.
func (s *MongoFileStore) SetStatus(ctx context.Context, filename string, to models.FileStatus) error {
	rec, err := s.Get(ctx, filename)
	if err != nil {
		return err
	}
	if !models.CanTransition(rec.Status, to) {
		return fmt.Errorf("illegal status transition for '%s': %s -> %s", filename, rec.Status, to)
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": filename, "status": rec.Status},
		bson.M{"$set": bson.M{"status": to, "last_modified": time.Now().UTC()}},
	)
	return err
}

// Delete removes a record entirely.
func (s *MongoFileStore) Delete(ctx context.Context, filename string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": filename})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.NotFoundf("file '%s' not found", filename)
	}
	return nil
}

// Stats aggregates totals across the registry.
func (s *MongoFileStore) Stats(ctx context.Context) (*Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":          "$status",
			"count":        bson.M{"$sum": 1},
			"total_size":   bson.M{"$sum": "$size"},
			"total_chunks": bson.M{"$sum": "$chunk_count"},
		}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &Stats{StatusCounts: make(map[models.FileStatus]int64)}
	for cursor.Next(ctx) {
		var row struct {
			Status      models.FileStatus `bson:"_id"`
			Count       int64             `bson:"count"`
			TotalSize   int64             `bson:"total_size"`
			TotalChunks int64             `bson:"total_chunks"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		stats.StatusCounts[row.Status] = row.Count
		if row.Status != models.StatusDeleted {
			stats.TotalFiles += row.Count
			stats.TotalSize += row.TotalSize
			stats.TotalChunks += row.TotalChunks
		}
	}
	return stats, cursor.Err()
}

func sortSpec(sortBy string) bson.D {
	switch sortBy {
	case "name":
		return bson.D{{Key: "_id", Value: 1}}
	case "size":
		return bson.D{{Key: "size", Value: -1}}
	default: // date, newest first
		return bson.D{{Key: "last_modified", Value: -1}}
	}
}

// regexQuote escapes regex metacharacters so user search strings match
// literally.
func regexQuote(s string) string {
	special := `\.+*?()|[]{}^$`
	out := make([]rune, 0, len(s))
	for _, r := range s {
		for _, sp := range special {
			if r == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, r)
	}
	return string(out)
}

var _ FileStore = (*MongoFileStore)(nil)
