package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cognivia/ideaflow/internal/settings"
)

// SettingsStore is the Mongo-backed implementation of settings.Store. The
// config collection holds at most one document.
type SettingsStore struct {
	col *mongo.Collection
}

var _ settings.Store = (*SettingsStore)(nil)

// Get returns the settings singleton, or (nil, nil) when no configuration
// has ever been written.
func (s *SettingsStore) Get(ctx context.Context) (*settings.Settings, error) {
	var doc settings.Settings
	err := s.col.FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &doc, nil
}

// Upsert writes the whole settings document, creating it on first use.
func (s *SettingsStore) Upsert(ctx context.Context, cfg settings.Settings) error {
	_, err := s.col.UpdateOne(ctx,
		bson.D{},
		bson.D{{Key: "$set", Value: cfg}},
		mongoUpsert(),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
