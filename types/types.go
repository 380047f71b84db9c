package types

import (
	"encoding/hex"
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventProposalSubmittedType = "proposal_submitted"
	EventVoteSubmittedType     = "vote_submitted"
	EventProposalEndedType     = "proposal_ended"
	EventProposalWinType       = "proposal_win"
	EventProposalLoseType      = "proposal_lose"
	EventIdentitySetType       = "identity_set"
	EventIdentityClearedType   = "identity_cleared"
	EventIdentityKilledType    = "identity_killed"
	EventIdentityForcedType    = "identity_forced"
)

type EventProposalSubmitted struct {
	Proposal uint32 `json:"proposal"`
	Proposer string `json:"proposer"`
	EndTick  uint64 `json:"endTick"`
	Text     []byte `json:"text"`
}

func EncodeEventProposalSubmitted(event *EventProposalSubmitted) abci.Event {
	return abci.Event{
		Type: EventProposalSubmittedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "endTick", Value: fmt.Sprintf("%v", event.EndTick), Index: false},
			{Key: "text", Value: hex.EncodeToString(event.Text), Index: false},
		},
	}
}

func DecodeEventProposalSubmitted(originEvent abci.Event) *EventProposalSubmitted {
	event := &EventProposalSubmitted{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			id, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Proposal = uint32(id)
		case "proposer":
			event.Proposer = v.Value
		case "endTick":
			endTick, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.EndTick = endTick
		case "text":
			text, err := hex.DecodeString(v.Value)
			if err != nil {
				return nil
			}
			event.Text = text
		}
	}
	return event
}

type EventVoteSubmitted struct {
	Proposal uint32 `json:"proposal"`
	Voter    string `json:"voter"`
	Choice   Choice `json:"choice"`
}

func EncodeEventVoteSubmitted(event *EventVoteSubmitted) abci.Event {
	return abci.Event{
		Type: EventVoteSubmittedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "choice", Value: event.Choice.String(), Index: false},
		},
	}
}

func DecodeEventVoteSubmitted(originEvent abci.Event) *EventVoteSubmitted {
	event := &EventVoteSubmitted{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			id, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Proposal = uint32(id)
		case "voter":
			event.Voter = v.Value
		case "choice":
			c, err := ParseChoice(v.Value)
			if err != nil {
				return nil
			}
			event.Choice = c
		}
	}
	return event
}

// EventProposalResolved is emitted as two block events: proposal_ended
// followed by proposal_win or proposal_lose.
type EventProposalResolved struct {
	Proposal uint32  `json:"proposal"`
	Outcome  Outcome `json:"outcome"`
	YesCount uint32  `json:"yesCount"`
	NoCount  uint32  `json:"noCount"`
	Tick     uint64  `json:"tick"`
}

func EncodeEventProposalResolved(event *EventProposalResolved) []abci.Event {
	ended := abci.Event{
		Type: EventProposalEndedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "tick", Value: fmt.Sprintf("%v", event.Tick), Index: false},
		},
	}
	tp := EventProposalLoseType
	if event.Outcome == OutcomeWin {
		tp = EventProposalWinType
	}
	outcome := abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "yes", Value: fmt.Sprintf("%v", event.YesCount), Index: false},
			{Key: "no", Value: fmt.Sprintf("%v", event.NoCount), Index: false},
			{Key: "tick", Value: fmt.Sprintf("%v", event.Tick), Index: false},
		},
	}
	return []abci.Event{ended, outcome}
}

// DecodeEventProposalOutcome decodes a proposal_win or proposal_lose event.
func DecodeEventProposalOutcome(originEvent abci.Event) *EventProposalResolved {
	event := &EventProposalResolved{}
	switch originEvent.Type {
	case EventProposalWinType:
		event.Outcome = OutcomeWin
	case EventProposalLoseType:
		event.Outcome = OutcomeLose
	default:
		return nil
	}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			id, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Proposal = uint32(id)
		case "yes":
			n, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.YesCount = uint32(n)
		case "no":
			n, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.NoCount = uint32(n)
		case "tick":
			tick, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Tick = tick
		}
	}
	return event
}

type EventIdentity struct {
	Type    string      `json:"type"`
	Address string      `json:"address"`
	Hash    common.Hash `json:"hash"`
}

func EncodeEventIdentity(event *EventIdentity) abci.Event {
	return abci.Event{
		Type: event.Type,
		Attributes: []abci.EventAttribute{
			{Key: "address", Value: event.Address, Index: true},
			{Key: "hash", Value: event.Hash.Hex(), Index: false},
		},
	}
}

func DecodeEventIdentity(originEvent abci.Event) *EventIdentity {
	switch originEvent.Type {
	case EventIdentitySetType, EventIdentityClearedType, EventIdentityKilledType, EventIdentityForcedType:
	default:
		return nil
	}
	event := &EventIdentity{Type: originEvent.Type}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "address":
			event.Address = v.Value
		case "hash":
			event.Hash = common.HexToHash(v.Value)
		}
	}
	return event
}
