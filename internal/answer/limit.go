package answer

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/nadzzz/farmline/internal/session"
)

// Limit wraps svc so that at most n calls run concurrently. Callers beyond
// the limit wait until a slot frees up or their context ends. n <= 0
// returns svc unchanged.
func Limit(svc Service, n int) Service {
	if n <= 0 {
		return svc
	}
	return &limited{svc: svc, sem: semaphore.NewWeighted(int64(n))}
}

type limited struct {
	svc Service
	sem *semaphore.Weighted
}

func (l *limited) Answer(ctx context.Context, req Request) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for answer slot: %w", err)
	}
	defer l.sem.Release(1)
	return l.svc.Answer(ctx, req)
}

func (l *limited) Summarize(ctx context.Context, history []session.Turn, language string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for summary slot: %w", err)
	}
	defer l.sem.Release(1)
	return l.svc.Summarize(ctx, history, language)
}
