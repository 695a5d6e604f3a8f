package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/scope"
)

// CounterSequence hands out ids from a Store counter so that several
// instances writing to one work directory never reuse an id.
type CounterSequence struct {
	store Store
	key   string
}

func NewCounterSequence(store Store, key string) *CounterSequence {
	return &CounterSequence{store: store, key: key}
}

func (c *CounterSequence) NextID(ctx context.Context) (scope.ID, error) {
	n, err := c.store.Increment(ctx, c.key)
	if err != nil {
		return scope.ID{}, fmt.Errorf("next id from %s: %w", c.key, err)
	}
	return scope.ID{N: n}, nil
}

// SequenceFor picks the id sequence for scoped files. Ids only need to be
// unique among processes sharing the work dir; a shared backend may mean
// several hosts mount the same directory, so it draws from the store counter
// and falls back to instance-tagged local ids while the store is down.
func SequenceFor(backend string, store Store, logger *slog.Logger) scope.Sequence {
	if !Shared(backend) {
		return scope.Global()
	}
	return scope.NewFallbackSequence(NewCounterSequence(store, constants.ScopeSequenceCounter), logger)
}
