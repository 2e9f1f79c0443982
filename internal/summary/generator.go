// Package summary generates best-effort narrative summaries for finished
// sessions and conversations. Generation runs off the critical path in a
// bounded worker pool; an idempotence guard skips records that already
// carry a summary, so concurrent triggers for the same target collapse to
// one collaborator call.
package summary

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"guest-session-store/internal/domain"
	"guest-session-store/internal/store"
)

// Summarizer is the external text summarization collaborator. Failures and
// empty results mean "no summary available", never a fault.
type Summarizer interface {
	Summarize(ctx context.Context, messages []domain.ChatMessage, propertyContext, guestName string) (string, error)
}

// Store is the record surface the generator reads and writes back through.
// *store.Store satisfies this interface.
type Store interface {
	GetSession(ctx context.Context, sessionID, propertyID string) (*domain.VoiceDiagnosticsSession, error)
	GetConversation(ctx context.Context, propertyID, conversationID string) (*domain.ConversationSession, error)
	UpdateSessionFields(ctx context.Context, sessionID string, fields map[string]any) error
	UpdateConversation(ctx context.Context, propertyID, conversationID string, fields map[string]any) error
	ScanMissingSummaries(ctx context.Context) ([]store.SummaryTarget, error)
}

// ContextProvider supplies optional property context for richer summaries.
type ContextProvider func(ctx context.Context, propertyID string) string

// Generator owns the summary pipeline: trigger intake, deduplication, the
// worker pool, and write-back.
type Generator struct {
	store      Store
	summarizer Summarizer
	pool       *Pool
	log        *zap.Logger
	propCtx    ContextProvider

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a [Generator].
type Option func(*Generator)

// WithPropertyContext sets the provider consulted for property context
// before each summarization call. The default provides none.
func WithPropertyContext(p ContextProvider) Option {
	return func(g *Generator) {
		g.propCtx = p
	}
}

// NewGenerator creates a Generator backed by the given pool.
func NewGenerator(st Store, summarizer Summarizer, pool *Pool, logger *zap.Logger, opts ...Option) (*Generator, error) {
	if st == nil {
		return nil, errors.New("summary: store must not be nil")
	}
	if summarizer == nil {
		return nil, errors.New("summary: summarizer must not be nil")
	}
	if pool == nil {
		return nil, errors.New("summary: pool must not be nil")
	}
	if logger == nil {
		return nil, errors.New("summary: logger must not be nil")
	}
	g := &Generator{
		store:      st,
		summarizer: summarizer,
		pool:       pool,
		log:        logger,
		inFlight:   make(map[string]struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// TriggerSession requests a summary for a finished voice session. It
// returns immediately; the work runs detached and all failures are logged
// and otherwise invisible to the caller.
func (g *Generator) TriggerSession(propertyID, sessionID string) {
	g.trigger("session:"+sessionID, func(ctx context.Context) {
		g.processSession(ctx, propertyID, sessionID, false)
	})
}

// TriggerConversation requests a summary for a conversation.
func (g *Generator) TriggerConversation(propertyID, conversationID string) {
	g.trigger("conversation:"+conversationID, func(ctx context.Context) {
		g.processConversation(ctx, propertyID, conversationID)
	})
}

func (g *Generator) trigger(dedupKey string, run func(context.Context)) {
	g.mu.Lock()
	if _, busy := g.inFlight[dedupKey]; busy {
		g.mu.Unlock()
		return
	}
	g.inFlight[dedupKey] = struct{}{}
	g.mu.Unlock()

	accepted := g.pool.Submit(func(ctx context.Context) {
		defer g.release(dedupKey)
		run(ctx)
	})
	if !accepted {
		g.release(dedupKey)
		g.log.Warn("summary queue full, dropping trigger", zap.String("target", dedupKey))
	}
}

func (g *Generator) release(dedupKey string) {
	g.mu.Lock()
	delete(g.inFlight, dedupKey)
	g.mu.Unlock()
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeErrored
)

func (g *Generator) processSession(ctx context.Context, propertyID, sessionID string, terminalOnly bool) outcome {
	sess, err := g.store.GetSession(ctx, sessionID, propertyID)
	if err != nil {
		g.log.Warn("summary: failed to read session",
			zap.String("session_id", sessionID), zap.Error(err))
		return outcomeErrored
	}
	if sess.Summary != "" {
		return outcomeSkipped
	}
	if terminalOnly && !domain.IsTerminal(sess.Status) {
		return outcomeSkipped
	}

	messages := make([]domain.ChatMessage, 0, len(sess.Transcripts))
	for _, entry := range sess.Transcripts {
		messages = append(messages, domain.ChatMessage{Role: entry.Role, Content: entry.Text})
	}
	if len(messages) == 0 {
		return outcomeSkipped
	}

	text, err := g.summarize(ctx, messages, sess.PropertyID, sess.GuestName)
	if err != nil {
		g.log.Warn("summary: collaborator call failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return outcomeErrored
	}
	if text == "" {
		return outcomeSkipped
	}

	if err := g.store.UpdateSessionFields(ctx, sessionID, map[string]any{"summary": text}); err != nil {
		g.log.Warn("summary: failed to write session summary",
			zap.String("session_id", sessionID), zap.Error(err))
		return outcomeErrored
	}
	return outcomeProcessed
}

func (g *Generator) processConversation(ctx context.Context, propertyID, conversationID string) outcome {
	conv, err := g.store.GetConversation(ctx, propertyID, conversationID)
	if err != nil {
		g.log.Warn("summary: failed to read conversation",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return outcomeErrored
	}
	if conv.Summary != "" {
		return outcomeSkipped
	}

	messages := make([]domain.ChatMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, domain.ChatMessage{Role: msg.Role, Content: msg.Text})
	}
	if len(messages) == 0 {
		return outcomeSkipped
	}

	text, err := g.summarize(ctx, messages, conv.PropertyID, conv.GuestName)
	if err != nil {
		g.log.Warn("summary: collaborator call failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return outcomeErrored
	}
	if text == "" {
		return outcomeSkipped
	}

	err = g.store.UpdateConversation(ctx, propertyID, conversationID, map[string]any{"summary": text})
	if err != nil {
		g.log.Warn("summary: failed to write conversation summary",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return outcomeErrored
	}
	return outcomeProcessed
}

func (g *Generator) summarize(ctx context.Context, messages []domain.ChatMessage, propertyID, guestName string) (string, error) {
	propertyContext := ""
	if g.propCtx != nil && propertyID != "" {
		propertyContext = g.propCtx(ctx, propertyID)
	}
	text, err := g.summarizer.Summarize(ctx, messages, propertyContext, guestName)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
