package state

import (
	"fmt"

	"github.com/calehh/quad-app/types"
)

// OnTick resolves every proposal ending in (LastTick, tick]. Ticks already
// handled are ignored, so calling it twice for the same tick emits nothing.
func (s *State) OnTick(tick uint64) (events []*types.EventProposalResolved, err error) {
	if tick <= s.header.LastTick {
		return nil, nil
	}
	for t := s.header.LastTick + 1; t <= tick; t++ {
		var evs []*types.EventProposalResolved
		evs, err = s.resolveTick(t)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
		s.header.LastTick = t
	}
	return
}

func (s *State) resolveTick(tick uint64) (events []*types.EventProposalResolved, err error) {
	ids, err := s.ExpiringAt(tick)
	if err != nil {
		return
	}
	if len(ids) == 0 {
		return
	}
	records := make([]*types.Proposal, len(ids))
	for i, id := range ids {
		var p *types.Proposal
		p, err = s.proposal(id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			s.logger.Error("scheduled proposal missing", "proposal", id, "tick", tick)
			return nil, fmt.Errorf("%w: proposal %v at tick %v", ErrResolveMissingProposal, id, tick)
		}
		records[i] = p
	}
	if _, err = s.TakeAndClearExpiry(tick); err != nil {
		return nil, err
	}
	events = make([]*types.EventProposalResolved, 0, len(records))
	for _, p := range records {
		p.Outcome = p.Decide()
		p.Status = types.ProposalStatusResolved
		s.modProposals[p.Id] = true
		s.logger.Info("proposal resolved", "proposal", p.Id, "tick", tick, "outcome", p.Outcome, "yes", p.YesCount, "no", p.NoCount)
		events = append(events, &types.EventProposalResolved{
			Proposal: p.Id,
			Outcome:  p.Outcome,
			YesCount: p.YesCount,
			NoCount:  p.NoCount,
			Tick:     tick,
		})
	}
	return
}
