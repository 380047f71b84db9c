package state

import (
	"errors"
)

var (
	ErrIdentityRequired       = errors.New("identity required")
	ErrProposalTooShort       = errors.New("proposal too short")
	ErrProposalTooLong        = errors.New("proposal too long")
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrAlreadyVoted           = errors.New("already voted")
	ErrProposalExpired        = errors.New("proposal expired")
	ErrTooManyProposalsAtTick = errors.New("too many proposals at tick")
	ErrProposalIdOverflow     = errors.New("proposal id overflow")
	ErrTallyOverflow          = errors.New("tally overflow")

	ErrIdentityNotFound = errors.New("identity not found")
	ErrNotRegistrar     = errors.New("caller is not the registrar")

	ErrTxNonceInvalid = errors.New("nonce invalid")
	ErrTxSigInvalid   = errors.New("signature invalid")

	// ErrResolveMissingProposal means a scheduled id has no record. The
	// stored state is corrupt and the block must not be committed.
	ErrResolveMissingProposal = errors.New("scheduled proposal missing")
)

const (
	CodeOK uint32 = iota
	CodeInternal
	CodeUnauthorized
	CodeTooShort
	CodeTooLong
	CodeNotFound
	CodeAlreadyVoted
	CodeExpired
	CodeCapacityExceeded
	CodeOverflow
	CodeIdentityNotFound
	CodeNotRegistrar
	CodeNonceInvalid
	CodeSigInvalid
)

var errorCodes = []struct {
	err  error
	code uint32
}{
	{ErrIdentityRequired, CodeUnauthorized},
	{ErrProposalTooShort, CodeTooShort},
	{ErrProposalTooLong, CodeTooLong},
	{ErrProposalNotFound, CodeNotFound},
	{ErrAlreadyVoted, CodeAlreadyVoted},
	{ErrProposalExpired, CodeExpired},
	{ErrTooManyProposalsAtTick, CodeCapacityExceeded},
	{ErrProposalIdOverflow, CodeOverflow},
	{ErrTallyOverflow, CodeOverflow},
	{ErrIdentityNotFound, CodeIdentityNotFound},
	{ErrNotRegistrar, CodeNotRegistrar},
	{ErrTxNonceInvalid, CodeNonceInvalid},
	{ErrTxSigInvalid, CodeSigInvalid},
}

// ErrorCode maps an error to the ABCI result code reported to clients.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}
