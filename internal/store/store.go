// Package store is the MongoDB adapter behind the service: session
// transcripts, analysis results, and the admin-editable settings singleton,
// each exposed through a small typed accessor.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cognivia/ideaflow/internal/config"
)

const (
	chatsCollection    = "chats"
	analysesCollection = "analyses"
	configCollection   = "config"

	connectTimeout = 10 * time.Second
)

// Store owns the Mongo client and hands out collection-scoped accessors.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Printf("[store] connected to %s/%s", cfg.Mongo.URI, cfg.Mongo.Database)
	return &Store{
		client: client,
		db:     client.Database(cfg.Mongo.Database),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// Transcripts accesses the per-session conversation documents.
func (s *Store) Transcripts() *Transcripts {
	return &Transcripts{col: s.db.Collection(chatsCollection)}
}

// Analyses accesses the per-session analysis results.
func (s *Store) Analyses() *Analyses {
	return &Analyses{col: s.db.Collection(analysesCollection)}
}

// Settings accesses the admin settings singleton.
func (s *Store) Settings() *SettingsStore {
	return &SettingsStore{col: s.db.Collection(configCollection)}
}

// Admin accesses the dashboard aggregation queries.
func (s *Store) Admin() *Admin {
	return &Admin{
		chats:    s.db.Collection(chatsCollection),
		analyses: s.db.Collection(analysesCollection),
	}
}

func mongoUpsert() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}
