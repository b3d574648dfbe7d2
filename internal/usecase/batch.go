package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"policyqa/internal/domain"
)

// BatchOptions bounds concurrent question processing.
type BatchOptions struct {
	Concurrency      int           // simultaneous pipelines; keeps model rate limits honest
	QuestionDeadline time.Duration // per-question budget, fallback answer past it
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Concurrency: 3, QuestionDeadline: 90 * time.Second}
}

// BatchResult pairs the ordered answers with the request's total
// model token spend.
type BatchResult struct {
	Answers []domain.Answer
	Tokens  domain.TokenUsage
}

// AnswerBatch runs the pipeline for each question concurrently and
// returns answers in question order. A question that fails or runs
// past its deadline gets the fallback answer; only a document that
// was never ingested fails the whole batch.
func (a *Answerer) AnswerBatch(ctx context.Context, docID string, questions []string, opts BatchOptions) (BatchResult, error) {
	if opts.Concurrency <= 0 {
		opts = DefaultBatchOptions()
	}

	requestID := uuid.NewString()
	logger := a.logger.With("request_id", requestID, "doc_id", docID)
	logger.Info("answering batch", "questions", len(questions))

	result := BatchResult{Answers: make([]domain.Answer, len(questions))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, question := range questions {
		i, question := i, question
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, opts.QuestionDeadline)
			defer cancel()

			answer, usage, err := a.Answer(qctx, docID, question)
			if err != nil {
				if errors.Is(err, domain.ErrDocNotFound) {
					return err
				}
				logger.Warn("question degraded to fallback",
					"question", question, "error", err)
				answer = fallbackAnswer()
			}

			mu.Lock()
			result.Answers[i] = answer
			result.Tokens.Add(usage)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	logger.Info("batch answered", "tokens", result.Tokens.Total)
	return result, nil
}
