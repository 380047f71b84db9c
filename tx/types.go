package tx

import (
	"errors"
)

type QuadTxType uint8

const (
	QuadTxTypeUnknown       QuadTxType = 0
	QuadTxTypeProposal      QuadTxType = 1
	QuadTxTypeVote          QuadTxType = 2
	QuadTxTypeSetIdentity   QuadTxType = 3
	QuadTxTypeClearIdentity QuadTxType = 4
	QuadTxTypeKillIdentity  QuadTxType = 5
	QuadTxTypeForceIdentity QuadTxType = 6
)

func (t QuadTxType) String() string {
	switch t {
	case QuadTxTypeProposal:
		return "proposal"
	case QuadTxTypeVote:
		return "vote"
	case QuadTxTypeSetIdentity:
		return "set_identity"
	case QuadTxTypeClearIdentity:
		return "clear_identity"
	case QuadTxTypeKillIdentity:
		return "kill_identity"
	case QuadTxTypeForceIdentity:
		return "force_identity"
	}
	return "unknown"
}

const (
	QuadTxVersion0 uint8 = 0
	QuadTxVersion1 uint8 = 1
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrInvalidPubKey        = errors.New("invalid pubkey")
)
