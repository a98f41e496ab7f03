package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cognivia/ideaflow/internal/scoring"
)

// Analyses persists scoring results, at most one per session.
type Analyses struct {
	col *mongo.Collection
}

// Upsert replaces any prior result for the session. Re-running an analysis
// keeps a single record per session id.
func (a *Analyses) Upsert(ctx context.Context, res scoring.Result) error {
	_, err := a.col.ReplaceOne(ctx,
		bson.D{{Key: "session_id", Value: res.SessionID}},
		res,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert analysis %s: %w", res.SessionID, err)
	}
	return nil
}

// Get returns the stored result for a session, or nil when none exists.
func (a *Analyses) Get(ctx context.Context, sessionID string) (*scoring.Result, error) {
	var res scoring.Result
	err := a.col.FindOne(ctx, bson.D{{Key: "session_id", Value: sessionID}}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", sessionID, err)
	}
	return &res, nil
}

// List returns results created within [start, end], newest first. Zero
// bounds are open-ended.
func (a *Analyses) List(ctx context.Context, start, end time.Time) ([]scoring.Result, error) {
	created := bson.D{}
	if !start.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: start})
	}
	if !end.IsZero() {
		created = append(created, bson.E{Key: "$lte", Value: end})
	}
	filter := bson.D{}
	if len(created) > 0 {
		filter = bson.D{{Key: "created_at", Value: created}}
	}

	cur, err := a.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer cur.Close(ctx)

	var out []scoring.Result
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}
	return out, nil
}

// Delete removes the result for a session. existed reports whether there
// was one.
func (a *Analyses) Delete(ctx context.Context, sessionID string) (existed bool, err error) {
	res, err := a.col.DeleteOne(ctx, bson.D{{Key: "session_id", Value: sessionID}})
	if err != nil {
		return false, fmt.Errorf("delete analysis %s: %w", sessionID, err)
	}
	return res.DeletedCount > 0, nil
}
