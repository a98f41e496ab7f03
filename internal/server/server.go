// Package server is the HTTP surface of the service: the streaming chat
// endpoint, the transcript and analysis operations, and the admin
// dashboard routes, assembled over narrow interfaces so handlers are
// testable with fakes.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cognivia/ideaflow/internal/chat"
	"github.com/cognivia/ideaflow/internal/config"
	"github.com/cognivia/ideaflow/internal/scoring"
	"github.com/cognivia/ideaflow/internal/settings"
	"github.com/cognivia/ideaflow/internal/store"
)

// Streamer runs one conversational turn, relaying tokens to the sink.
type Streamer interface {
	Stream(ctx context.Context, sessionID, message string, sink chat.Sink) error
}

// Transcripts is the slice of the document store the handlers need.
type Transcripts interface {
	Load(ctx context.Context, sessionID string) ([]chat.Message, error)
	Get(ctx context.Context, sessionID string) (*store.SessionDoc, error)
	SetFinalIdea(ctx context.Context, sessionID, idea string) (bool, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	All(ctx context.Context) ([]store.SessionDoc, error)
}

// Analyses persists and serves scoring results.
type Analyses interface {
	Upsert(ctx context.Context, res scoring.Result) error
	Get(ctx context.Context, sessionID string) (*scoring.Result, error)
	List(ctx context.Context, start, end time.Time) ([]scoring.Result, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// Scorer produces an analysis for a finished session.
type Scorer interface {
	Analyze(ctx context.Context, sessionID string, history []chat.Message, finalIdea string) scoring.Result
	ExtractThemes(ctx context.Context, texts []string) []scoring.ThemeCount
}

// Dashboard runs the admin aggregation queries.
type Dashboard interface {
	Statistics(ctx context.Context) (store.Statistics, error)
	Averages(ctx context.Context) (store.Averages, error)
	OriginalityBuckets(ctx context.Context) ([]store.ScoreBucket, error)
	FinalIdeas(ctx context.Context) ([]string, error)
}

// App wires the HTTP surface together and owns its lifecycle.
type App struct {
	cfg         *config.Config
	pipeline    Streamer
	transcripts Transcripts
	analyses    Analyses
	scorer      Scorer
	dashboard   Dashboard
	cache       *settings.Cache
	buffers     *chat.BufferManager

	server     *http.Server
	sweeper    *cron.Cron
	signalChan chan os.Signal // for testing
}

func New(cfg *config.Config, pipeline Streamer, transcripts Transcripts, analyses Analyses, scorer Scorer, dashboard Dashboard, cache *settings.Cache, buffers *chat.BufferManager) *App {
	return &App{
		cfg:         cfg,
		pipeline:    pipeline,
		transcripts: transcripts,
		analyses:    analyses,
		scorer:      scorer,
		dashboard:   dashboard,
		cache:       cache,
		buffers:     buffers,
	}
}

// Routes builds the request mux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat_stream", a.handleChatStream)
	mux.HandleFunc("GET /conversation", a.handleConversation)
	mux.HandleFunc("POST /add-finalIdea", a.handleAddFinalIdea)
	mux.HandleFunc("POST /analyze", a.handleAnalyze)

	mux.HandleFunc("GET /config", a.handleGetConfig)
	mux.HandleFunc("PUT /config", a.handlePutConfig)
	mux.HandleFunc("GET /stats", a.handleStats)
	mux.HandleFunc("GET /diagrams", a.handleDiagrams)
	mux.HandleFunc("GET /analysis", a.handleListAnalyses)
	mux.HandleFunc("DELETE /analysis/{session_id}", a.handleDeleteAnalysis)
	mux.HandleFunc("GET /datas", a.handleDatas)
	mux.HandleFunc("GET /user", a.handleUser)
	mux.HandleFunc("DELETE /user/{session_id}", a.handleDeleteUser)
	mux.HandleFunc("POST /download/chats", a.handleDownloadChats)
	mux.HandleFunc("POST /download/analysis", a.handleDownloadAnalyses)
	mux.HandleFunc("POST /download/all", a.handleDownloadAll)

	return mux
}

// Run starts the server and the buffer-eviction sweep, then blocks until
// SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	if err := a.startSweeper(); err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: a.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := a.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down...")
	return a.Shutdown()
}

func (a *App) Shutdown() error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	log.Printf("[server] shutdown complete")
	return nil
}

// startSweeper schedules the idle-buffer eviction sweep.
func (a *App) startSweeper() error {
	idle, err := time.ParseDuration(a.cfg.Chat.BufferIdleTTL)
	if err != nil {
		return fmt.Errorf("parse buffer idle ttl: %w", err)
	}
	sweep, err := time.ParseDuration(a.cfg.Chat.EvictionSweep)
	if err != nil {
		return fmt.Errorf("parse eviction sweep: %w", err)
	}

	a.sweeper = cron.New()
	_, err = a.sweeper.AddFunc(fmt.Sprintf("@every %s", sweep), func() {
		evicted := a.buffers.EvictIdle(idle)
		if evicted > 0 {
			log.Printf("[server] evicted %d idle session buffers", evicted)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule eviction sweep: %w", err)
	}
	a.sweeper.Start()
	return nil
}
