package summary

import (
	"context"

	"go.uber.org/zap"
)

// Limiter is the blocking backoff primitive consulted before each
// summarization call in the batch job.
type Limiter interface {
	WaitIfNeeded()
}

// BatchResult counts the outcomes of one batch invocation.
type BatchResult struct {
	Processed int
	Skipped   int
	Errored   int
}

// RunBatch scans for records missing a summary and processes up to max of
// them, pacing collaborator calls through the limiter. Voice sessions that
// have not reached a terminal state are skipped; the live finalize path
// will pick them up.
func (g *Generator) RunBatch(ctx context.Context, limiter Limiter, max int) (BatchResult, error) {
	var result BatchResult
	if max <= 0 {
		return result, nil
	}

	targets, err := g.store.ScanMissingSummaries(ctx)
	if err != nil {
		return result, err
	}

	for _, target := range targets {
		if result.Processed >= max {
			break
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if limiter != nil {
			limiter.WaitIfNeeded()
		}

		var out outcome
		if target.IsSession() {
			out = g.processSession(ctx, target.PropertyID, target.SessionID, true)
		} else {
			out = g.processConversation(ctx, target.PropertyID, target.ConversationID)
		}
		switch out {
		case outcomeProcessed:
			result.Processed++
		case outcomeSkipped:
			result.Skipped++
		case outcomeErrored:
			result.Errored++
		}
	}

	g.log.Info("summary batch finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errored", result.Errored))
	return result, nil
}
