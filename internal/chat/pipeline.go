package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cognivia/ideaflow/internal/config"
	"github.com/cognivia/ideaflow/internal/llm"
	"github.com/cognivia/ideaflow/internal/settings"
)

// ErrStreamInFlight rejects a second concurrent stream for a session. One
// active stream per session id is an enforced invariant, not an assumption.
var ErrStreamInFlight = errors.New("a stream is already active for this session")

// TranscriptStore is the durable-transcript surface the pipeline needs.
// Load returns an empty slice for unknown sessions; Append deduplicates on
// write, so retrying a completed turn pair is harmless.
type TranscriptStore interface {
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Append(ctx context.Context, sessionID string, msgs []Message) error
}

// Sink receives relayed tokens. Returning an error stops the relay; the
// caller is treated as gone and whatever has accumulated stays final.
type Sink func(token string) error

const persistTimeout = 15 * time.Second

// Pipeline drives one chat turn end to end: bounded context assembly,
// streaming relay, and dedup-on-write persistence once the full assistant
// reply has been observed.
type Pipeline struct {
	client  llm.Client
	store   TranscriptStore
	buffers *BufferManager
	cache   *settings.Cache

	model        string
	temperature  float64
	promptWindow int
	pace         time.Duration
	loc          *time.Location
}

func NewPipeline(cfg *config.Config, client llm.Client, store TranscriptStore, buffers *BufferManager, cache *settings.Cache) (*Pipeline, error) {
	loc, err := time.LoadLocation(cfg.Chat.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Chat.Timezone, err)
	}
	return &Pipeline{
		client:       client,
		store:        store,
		buffers:      buffers,
		cache:        cache,
		model:        cfg.Provider.Model,
		temperature:  cfg.Provider.Temperature,
		promptWindow: cfg.Chat.PromptWindow,
		pace:         time.Duration(cfg.Chat.TokenPaceMs) * time.Millisecond,
		loc:          loc,
	}, nil
}

// Stream runs one conversational turn for the session and relays tokens to
// sink as they arrive.
//
// Errors are returned only before the first token can be produced
// (settings store unavailable, a stream already in flight, or the upstream
// call failing to establish). Once streaming has begun, interruptions and
// sink failures end the stream quietly: the partial reply already relayed
// is final, and whatever was accumulated is still persisted.
func (p *Pipeline) Stream(ctx context.Context, sessionID, message string, sink Sink) error {
	s, found, err := p.cache.Current(ctx)
	if err != nil {
		return err
	}
	if !found {
		s = settings.Default()
	}

	buf := p.buffers.Get(sessionID)
	if !buf.TryAcquireStream() {
		return ErrStreamInFlight
	}
	defer buf.ReleaseStream()

	if buf.Len() == 0 {
		p.rehydrate(ctx, sessionID, buf, s.MessageValue)
	}

	// Turns produced by this request, to be persisted on completion.
	var turns []Message

	// A caller retry can re-submit the same prompt before the assistant
	// ever replied; in that case the user turn is already buffered and must
	// not be doubled. The buffered turn is still carried into this
	// request's persistence set; the store's fingerprint dedup drops it if
	// it already landed.
	if last, ok := buf.Last(); ok && last.Role == RoleUser {
		turns = append(turns, last)
	} else {
		userMsg := NewMessage(RoleUser, message, time.Now().In(p.loc))
		buf.Put(userMsg)
		turns = append(turns, userMsg)
	}

	req := llm.Request{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    p.outboundMessages(s, buf),
	}

	full, streamErr := p.client.Stream(ctx, req, func(token string) error {
		if p.pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pace):
			}
		}
		return sink(token)
	})
	if streamErr != nil {
		if errors.Is(streamErr, llm.ErrUnavailable) {
			return streamErr
		}
		// Interrupted upstream or a sink that went away: the tokens already
		// delivered are final. Fall through and persist what we have.
		log.Printf("[chat] stream for %s ended early: %v", sessionID, streamErr)
	}

	if full != "" {
		assistantMsg := NewMessage(RoleAssistant, full, time.Now().In(p.loc))
		buf.Put(assistantMsg)
		turns = append(turns, assistantMsg)
	}

	// Persistence happens only after the entire reply has been observed.
	// Best effort: the stream already succeeded from the caller's side, so
	// append failures are logged, never surfaced. The deduplicating append
	// makes a duplicate completion callback harmless.
	if len(turns) > 0 {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := p.store.Append(pctx, sessionID, turns); err != nil {
			log.Printf("[chat] append transcript for %s warning: %v", sessionID, err)
		}
	}

	return nil
}

// rehydrate refills an empty buffer from the durable transcript. pageSize
// is the admin-configured messageValue; it governs only this reload, not
// the prompt window.
func (p *Pipeline) rehydrate(ctx context.Context, sessionID string, buf *Buffer, pageSize int) {
	if pageSize <= 0 {
		pageSize = settings.DefaultMessageValue
	}
	history, err := p.store.Load(ctx, sessionID)
	if err != nil {
		log.Printf("[chat] rehydrate %s warning: %v", sessionID, err)
		return
	}
	SortByTimestamp(history)
	if len(history) > pageSize {
		history = history[len(history)-pageSize:]
	}
	for _, m := range history {
		buf.Put(m)
	}
}

// outboundMessages builds the upstream request: one system instruction
// followed by the most recent promptWindow buffered turns.
func (p *Pipeline) outboundMessages(s settings.Settings, buf *Buffer) []llm.Message {
	system := CompileSystemPrompt(s.Tone, s.GenderTone, s.TextSize, s.Interval)
	recent := buf.Recent(p.promptWindow)
	out := make([]llm.Message, 0, len(recent)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
