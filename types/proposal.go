package types

import (
	"errors"
	"strings"
)

type Proposal struct {
	Id        uint32         `json:"id"`
	Proposer  string         `json:"proposer"`
	Text      []byte         `json:"text"`
	YesCount  uint32         `json:"yes_count"`
	NoCount   uint32         `json:"no_count"`
	StartTick uint64         `json:"start_tick"`
	EndTick   uint64         `json:"end_tick"`
	Status    ProposalStatus `json:"status"`
	Outcome   Outcome        `json:"outcome"`
}

func (p *Proposal) Clone() *Proposal {
	n := *p
	if p.Text != nil {
		n.Text = make([]byte, len(p.Text))
		copy(n.Text, p.Text)
	}
	return &n
}

// Open reports whether votes are still accepted at tick.
func (p *Proposal) Open(tick uint64) bool {
	return p.Status == ProposalStatusOpen && tick < p.EndTick
}

// Decide returns the outcome of the current tally. Ties lose.
func (p *Proposal) Decide() Outcome {
	if p.YesCount > p.NoCount {
		return OutcomeWin
	}
	return OutcomeLose
}

type ProposalStatus uint64

const (
	ProposalStatusOpen     ProposalStatus = 1
	ProposalStatusResolved ProposalStatus = 2
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusOpen:
		return "open"
	case ProposalStatusResolved:
		return "resolved"
	}
	return "unknown"
}

type Outcome uint64

const (
	OutcomeNone Outcome = 0
	OutcomeWin  Outcome = 1
	OutcomeLose Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLose:
		return "lose"
	}
	return "none"
}

var ErrInvalidChoice = errors.New("invalid vote choice")

// Choice is a binary vote. It is encoded as "yes" or "no".
type Choice bool

const (
	ChoiceYes Choice = true
	ChoiceNo  Choice = false
)

func (c Choice) String() string {
	if c {
		return "yes"
	}
	return "no"
}

func ParseChoice(s string) (c Choice, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "aye":
		c = ChoiceYes
	case "no", "n", "false", "nay":
		c = ChoiceNo
	default:
		err = ErrInvalidChoice
	}
	return
}

func (c Choice) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Choice) UnmarshalText(dat []byte) (err error) {
	*c, err = ParseChoice(string(dat))
	return
}
