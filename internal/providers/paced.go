package providers

import (
	"context"
	"fmt"

	"docquorum/internal/pacing"
)

// Waiter is satisfied by *pacing.Limiter.
type Waiter interface {
	Wait(ctx context.Context) error
}

var _ Waiter = (*pacing.Limiter)(nil)

// Paced spaces calls to the wrapped backend through one shared limiter.
type Paced struct {
	Backend Backend
	Limiter Waiter
}

func NewPaced(b Backend, l Waiter) *Paced {
	return &Paced{Backend: b, Limiter: l}
}

func (p *Paced) Configured(modelID string) bool { return Configured(p.Backend, modelID) }

func (p *Paced) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return "", newError(KindUnreachable, "pacing", modelID, fmt.Errorf("wait for generation slot: %w", err))
		}
	}
	return p.Backend.Complete(ctx, modelID, messages)
}
