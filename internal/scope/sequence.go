package scope

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID names one scoped resource. Instance is empty for ids drawn from a
// sequence that is already unique across every writer of the work dir.
type ID struct {
	Instance string
	N        int64
}

func (id ID) String() string {
	if id.Instance == "" {
		return strconv.FormatInt(id.N, 10)
	}
	return id.Instance + "-" + strconv.FormatInt(id.N, 10)
}

// Sequence hands out ids for scoped resource names. Implementations must
// never return the same id twice to callers sharing a work directory.
type Sequence interface {
	NextID(ctx context.Context) (ID, error)
}

// AtomicSequence is a process-wide monotonically increasing sequence.
type AtomicSequence struct {
	n atomic.Int64
}

func (s *AtomicSequence) NextID(context.Context) (ID, error) {
	return ID{N: s.n.Add(1)}, nil
}

var global AtomicSequence

// Global returns the sequence shared by every request in this process.
func Global() Sequence { return &global }

// FallbackSequence draws ids from primary and switches to a local sequence
// when primary fails. Local ids carry a per-process instance token, so they
// cannot collide with primary ids or with another instance's local ids.
type FallbackSequence struct {
	primary  Sequence
	instance string
	local    AtomicSequence
	degraded atomic.Bool
	logger   *slog.Logger
}

func NewFallbackSequence(primary Sequence, logger *slog.Logger) *FallbackSequence {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSequence{
		primary:  primary,
		instance: uuid.NewString()[:8],
		logger:   logger,
	}
}

func (s *FallbackSequence) NextID(ctx context.Context) (ID, error) {
	id, err := s.primary.NextID(ctx)
	if err == nil {
		if s.degraded.CompareAndSwap(true, false) {
			s.logger.Info("shared id sequence recovered")
		}
		return id, nil
	}
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("shared id sequence unavailable, using local ids", "instance", s.instance, "error", err)
	}
	return ID{Instance: s.instance, N: s.local.n.Add(1)}, nil
}
