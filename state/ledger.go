package state

import (
	"fmt"

	"github.com/calehh/quad-app/types"
)

func voteKey(id uint32, voter string) string {
	return fmt.Sprintf(KeyVote, id, voter)
}

func (s *State) HasVoted(id uint32, voter string) (bool, error) {
	key := voteKey(id, voter)
	if voted, ok := s.votes[key]; ok {
		return voted, nil
	}
	val, err := s.get(key)
	if err != nil {
		return false, err
	}
	s.votes[key] = val != nil
	return val != nil, nil
}

// CastVote sets the voter's flag and records the vote in the tally. If the
// tally cannot be updated the flag is cleared again.
func (s *State) CastVote(id uint32, voter string, choice types.Choice) (err error) {
	voted, err := s.HasVoted(id, voter)
	if err != nil {
		return
	}
	if voted {
		return ErrAlreadyVoted
	}
	key := voteKey(id, voter)
	s.votes[key] = true
	s.modVotes[key] = true
	if err = s.RecordVote(id, choice); err != nil {
		s.votes[key] = false
		delete(s.modVotes, key)
		return
	}
	return
}

// VoteProposal casts caller's vote on an open proposal.
func (s *State) VoteProposal(caller string, id uint32, choice types.Choice, checkOnly bool) (event *types.EventVoteSubmitted, err error) {
	s.logger.Debug("apply vote", "voter", caller, "proposal", id, "height", s.header.Height)
	if err = s.authorize(caller); err != nil {
		return
	}
	p, err := s.proposal(id)
	if err != nil {
		return
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}
	if !p.Open(s.header.Height) {
		return nil, ErrProposalExpired
	}
	if checkOnly {
		var voted bool
		voted, err = s.HasVoted(id, caller)
		if err != nil {
			return
		}
		if voted {
			return nil, ErrAlreadyVoted
		}
		return
	}
	if err = s.CastVote(id, caller, choice); err != nil {
		return
	}
	event = &types.EventVoteSubmitted{
		Proposal: id,
		Voter:    caller,
		Choice:   choice,
	}
	return
}
