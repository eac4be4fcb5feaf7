package similarity

import (
	"context"
	"fmt"

	"docquorum/internal/providers"
)

// Paced spaces oracle calls through a shared limiter.
type Paced struct {
	Oracle  Oracle
	Limiter providers.Waiter
}

func (p *Paced) Similarity(ctx context.Context, a, b string) (float64, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("wait for similarity slot: %w", err)
		}
	}
	return p.Oracle.Similarity(ctx, a, b)
}
