package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cognivia/ideaflow/internal/chat"
)

// SessionDoc is the durable per-session conversation document.
type SessionDoc struct {
	SessionID string         `bson:"session_id" json:"session_id"`
	Messages  []chat.Message `bson:"messages" json:"messages"`
	FinalIdea string         `bson:"final_idea,omitempty" json:"final_idea,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// Transcripts persists session transcripts with dedup-on-write appends.
type Transcripts struct {
	col *mongo.Collection
}

// Load returns the full transcript for a session, oldest first. Unknown
// sessions yield an empty slice, never an error.
func (t *Transcripts) Load(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var doc SessionDoc
	err := t.col.FindOne(ctx, bson.D{{Key: "session_id", Value: sessionID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", sessionID, err)
	}
	chat.SortByTimestamp(doc.Messages)
	return doc.Messages, nil
}

// Append merges msgs into the stored transcript, dropping any message whose
// (role, content, timestamp) fingerprint is already present. Calling it
// twice with the same list is equivalent to calling it once. Per-session
// writes are serialized by the pipeline's stream permit, so the
// read-merge-write here does not race with itself.
func (t *Transcripts) Append(ctx context.Context, sessionID string, msgs []chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	existing, err := t.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	merged := mergeTranscript(existing, msgs)

	now := time.Now().UTC()
	_, err = t.col.UpdateOne(ctx,
		bson.D{{Key: "session_id", Value: sessionID}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "messages", Value: merged},
				{Key: "updated_at", Value: now},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "session_id", Value: sessionID},
				{Key: "created_at", Value: now},
			}},
		},
		mongoUpsert(),
	)
	if err != nil {
		return fmt.Errorf("append transcript %s: %w", sessionID, err)
	}
	return nil
}

// SetFinalIdea records the user's submitted final idea, creating the
// session document when none exists yet. acknowledged is false only when
// the store confirmed neither an update nor an insert.
func (t *Transcripts) SetFinalIdea(ctx context.Context, sessionID, idea string) (acknowledged bool, err error) {
	now := time.Now().UTC()
	res, err := t.col.UpdateOne(ctx,
		bson.D{{Key: "session_id", Value: sessionID}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "final_idea", Value: idea},
				{Key: "updated_at", Value: now},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "session_id", Value: sessionID},
				{Key: "created_at", Value: now},
			}},
		},
		mongoUpsert(),
	)
	if err != nil {
		return false, fmt.Errorf("set final idea %s: %w", sessionID, err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

// Get returns the whole session document, or nil when the session is
// unknown.
func (t *Transcripts) Get(ctx context.Context, sessionID string) (*SessionDoc, error) {
	var doc SessionDoc
	err := t.col.FindOne(ctx, bson.D{{Key: "session_id", Value: sessionID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &doc, nil
}

// Delete removes the session transcript. existed reports whether there was
// one to remove.
func (t *Transcripts) Delete(ctx context.Context, sessionID string) (existed bool, err error) {
	res, err := t.col.DeleteOne(ctx, bson.D{{Key: "session_id", Value: sessionID}})
	if err != nil {
		return false, fmt.Errorf("delete transcript %s: %w", sessionID, err)
	}
	return res.DeletedCount > 0, nil
}

// All dumps every session document, for the export endpoints.
func (t *Transcripts) All(ctx context.Context) ([]SessionDoc, error) {
	cur, err := t.col.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []SessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transcripts: %w", err)
	}
	return docs, nil
}

// mergeTranscript appends the incoming messages that are not already
// present, keyed by their (role, content, timestamp) fingerprint, and
// returns the merged transcript in timestamp order. Pure: no database
// involved, so the idempotence property is directly testable.
func mergeTranscript(existing, incoming []chat.Message) []chat.Message {
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.Fingerprint()] = struct{}{}
	}

	merged := make([]chat.Message, len(existing), len(existing)+len(incoming))
	copy(merged, existing)
	for _, m := range incoming {
		fp := m.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		merged = append(merged, m)
	}
	chat.SortByTimestamp(merged)
	return merged
}
