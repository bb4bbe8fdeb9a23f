package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

const auditCollection = "audit_events"

// AuditRepository persists audit and security events to MongoDB. The
// collection is append-only; there is no update path.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// EnsureIndexes creates the query indexes. Called once at startup.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "campus_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "severity", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
	})
	return err
}

func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if _, err := r.coll.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// FindRecent returns the newest events for a campus, most recent first.
func (r *AuditRepository) FindRecent(ctx context.Context, campusID string, limit int64) ([]*models.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{"campus_id": campusID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountSince counts a campus's events of the given severity since a cutoff
// time.
func (r *AuditRepository) CountSince(ctx context.Context, campusID string, severity models.Severity, since time.Time) (int64, error) {
	filter := bson.M{
		"campus_id":  campusID,
		"severity":   severity,
		"created_at": bson.M{"$gte": since},
	}
	return r.coll.CountDocuments(ctx, filter)
}

// DeleteOlderThan purges events past the retention cutoff. Pure age-based
// policy; callers accept that it is approximate around the boundary.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return result.DeletedCount, nil
}
