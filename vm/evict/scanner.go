package evict

import (
	"context"
	"errors"

	"github.com/joshuapare/pagekit/internal/logger"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/fault"
	"github.com/joshuapare/pagekit/vm/swaptable"
)

// DefaultBatch is the number of pages one pass evicts.
const DefaultBatch = 10

// Swapper performs the swap-out of one page.
type Swapper interface {
	SwapOut(idx swaptable.PageIndex) error
}

// Scanner runs eviction passes.
type Scanner struct {
	swapper Swapper
	view    Residency
	policy  Policy
	batch   int
}

// New returns a scanner. A nil policy selects Ascending; batch <= 0 selects
// DefaultBatch.
func New(swapper Swapper, view Residency, policy Policy, batch int) *Scanner {
	if policy == nil {
		policy = Ascending{}
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Scanner{swapper: swapper, view: view, policy: policy, batch: batch}
}

// Policy returns the active policy.
func (s *Scanner) Policy() Policy { return s.policy }

// RunPass evicts up to the batch quota and returns how many pages went to
// swap. Resource errors (no frame, no slot, I/O) end the pass early with a
// nil error: the caller may try again on the next pressure signal. Any
// other swap-out error is returned together with the count so far.
func (s *Scanner) RunPass(ctx context.Context) (int, error) {
	log := logger.With("evict")
	evicted := 0

	for idx := range s.policy.Candidates(s.view) {
		if evicted >= s.batch {
			break
		}
		if err := ctx.Err(); err != nil {
			return evicted, err
		}

		err := s.swapper.SwapOut(idx)
		switch {
		case err == nil:
			evicted++
		case errors.Is(err, fault.ErrPageBusy), errors.Is(err, fault.ErrNotResident):
			continue
		case types.Recoverable(err):
			log.Warn("eviction pass stopped early", "evicted", evicted, "page", idx, "err", err)
			return evicted, nil
		default:
			return evicted, err
		}
	}

	log.Debug("eviction pass", "policy", s.policy.Name(), "evicted", evicted, "quota", s.batch)
	return evicted, nil
}
