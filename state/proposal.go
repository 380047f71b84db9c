package state

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/calehh/quad-app/types"
)

// proposal returns the authoritative cached record. Mutations must be
// followed by marking the id in modProposals.
func (s *State) proposal(id uint32) (p *types.Proposal, err error) {
	if p = s.proposals[id]; p != nil {
		return
	}
	if id >= s.header.NextProposalId {
		return nil, nil
	}
	val, err := s.get(fmt.Sprintf(KeyProposalBody, id))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	p = new(types.Proposal)
	err = json.Unmarshal(val, p)
	if err != nil {
		return nil, err
	}
	s.proposals[id] = p
	return
}

// GetProposal returns a copy of the record, or nil if it does not exist.
func (s *State) GetProposal(id uint32) (p *types.Proposal, err error) {
	p, err = s.proposal(id)
	if p != nil {
		p = p.Clone()
	}
	return
}

// AllocateProposalId hands out the next id. The counter never wraps.
func (s *State) AllocateProposalId() (id uint32, err error) {
	id = s.header.NextProposalId
	if id == math.MaxUint32 {
		return 0, ErrProposalIdOverflow
	}
	s.header.NextProposalId = id + 1
	return
}

func (s *State) checkText(text []byte) error {
	params := s.header.Params
	if len(text) < int(params.MinLength) {
		return ErrProposalTooShort
	}
	if len(text) > int(params.MaxLength) {
		return ErrProposalTooLong
	}
	return nil
}

// SubmitProposal creates a proposal ending at the current tick plus
// Duration plus one. Either every step succeeds or nothing changes.
func (s *State) SubmitProposal(caller string, text []byte, checkOnly bool) (event *types.EventProposalSubmitted, err error) {
	s.logger.Debug("apply proposal", "proposer", caller, "height", s.header.Height)
	if err = s.authorize(caller); err != nil {
		return
	}
	if err = s.checkText(text); err != nil {
		return
	}
	endTick := s.header.Params.EndTick(s.header.Height)
	if checkOnly {
		if s.header.NextProposalId == math.MaxUint32 {
			return nil, ErrProposalIdOverflow
		}
		var ids []uint32
		ids, err = s.bucket(endTick)
		if err != nil {
			return
		}
		if len(ids) >= int(s.header.Params.MaxProposalsPerTick) {
			return nil, ErrTooManyProposalsAtTick
		}
		return
	}

	id, err := s.AllocateProposalId()
	if err != nil {
		return
	}
	p := &types.Proposal{
		Id:        id,
		Proposer:  caller,
		Text:      append([]byte(nil), text...),
		StartTick: s.header.Height,
		EndTick:   endTick,
		Status:    types.ProposalStatusOpen,
		Outcome:   types.OutcomeNone,
	}
	s.proposals[id] = p
	s.modProposals[id] = true
	if err = s.RegisterExpiry(endTick, id); err != nil {
		delete(s.proposals, id)
		delete(s.modProposals, id)
		s.header.NextProposalId = id
		return nil, err
	}
	event = &types.EventProposalSubmitted{
		Proposal: id,
		Proposer: caller,
		EndTick:  endTick,
		Text:     p.Text,
	}
	return
}

// RecordVote adds one vote to the tally of an existing proposal.
func (s *State) RecordVote(id uint32, choice types.Choice) (err error) {
	p, err := s.proposal(id)
	if err != nil {
		return
	}
	if p == nil {
		return ErrProposalNotFound
	}
	if choice == types.ChoiceYes {
		if p.YesCount == math.MaxUint32 {
			return ErrTallyOverflow
		}
		p.YesCount++
	} else {
		if p.NoCount == math.MaxUint32 {
			return ErrTallyOverflow
		}
		p.NoCount++
	}
	s.modProposals[id] = true
	return
}
