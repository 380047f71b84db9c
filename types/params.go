package types

import (
	"errors"
	"fmt"
)

// Params are fixed at genesis and never change afterwards.
type Params struct {
	// MinLength and MaxLength bound the proposal text in bytes, inclusive.
	MinLength uint32 `json:"min_length"`
	MaxLength uint32 `json:"max_length"`
	// Duration is the voting window in ticks. A proposal submitted at
	// tick t ends at t + Duration + 1.
	Duration uint32 `json:"duration"`
	// MaxProposalsPerTick caps how many proposals may end on one tick.
	MaxProposalsPerTick uint32 `json:"max_proposals_per_tick"`
}

func DefaultParams() Params {
	return Params{
		MinLength:           4,
		MaxLength:           256,
		Duration:            10,
		MaxProposalsPerTick: 16,
	}
}

var (
	ErrParamsMaxProposals = errors.New("max_proposals_per_tick must be positive")
	ErrParamsLengthRange  = errors.New("min_length must not exceed max_length")
	ErrParamsMaxLength    = errors.New("max_length must be positive")
)

func (p Params) Validate() error {
	if p.MaxProposalsPerTick == 0 {
		return ErrParamsMaxProposals
	}
	if p.MaxLength == 0 {
		return ErrParamsMaxLength
	}
	if p.MinLength > p.MaxLength {
		return fmt.Errorf("%w: %d > %d", ErrParamsLengthRange, p.MinLength, p.MaxLength)
	}
	return nil
}

// EndTick is the tick at which a proposal submitted at start resolves.
func (p Params) EndTick(start uint64) uint64 {
	return start + uint64(p.Duration) + 1
}
