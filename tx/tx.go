package tx

import (
	"encoding/json"

	"github.com/calehh/quad-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

// QuadTx is the signed envelope of every transaction. The sender is the
// address of PubKey.
type QuadTx struct {
	Version uint8      `json:"version"`
	Type    QuadTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubkey"`
	Tx      any        `json:"tx"`
	Sig     [][]byte   `json:"sig"`
}

type ProposalTx struct {
	Text []byte `json:"text"`
}

type VoteTx struct {
	Proposal uint32       `json:"proposal"`
	Choice   types.Choice `json:"choice"`
}

type SetIdentityTx struct {
	Hash common.Hash `json:"hash"`
}

type ClearIdentityTx struct{}

type KillIdentityTx struct {
	Target string `json:"target"`
}

type ForceIdentityTx struct {
	Target string      `json:"target"`
	Hash   common.Hash `json:"hash"`
}

type quadTxTmpl[Tx any] struct {
	Version uint8      `json:"version"`
	Type    QuadTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubkey"`
	Tx      Tx         `json:"tx"`
	Sig     [][]byte   `json:"sig"`
}

// SigData is the byte string signed by the sender. ext binds the signature
// to a chain id.
func (tx *QuadTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *QuadTx) Sender() string {
	return ed25519.PubKey(tx.PubKey).Address().String()
}

func (tx *QuadTx) VerifySig(msg []byte) bool {
	if len(tx.PubKey) != ed25519.PubKeySize || len(tx.Sig) != 1 {
		return false
	}
	return ed25519.PubKey(tx.PubKey).VerifySignature(msg, tx.Sig[0])
}

func parseQuadTxType(dat []byte) QuadTxType {
	var tx struct {
		Type QuadTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return QuadTxTypeUnknown
	}
	return tx.Type
}

func unmarshalQuadTx[Tx any](dat []byte) (btx *QuadTx, err error) {
	var txt quadTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version > QuadTxVersion1 {
		err = ErrUnsupportedTxVersion
		return
	}
	if len(txt.PubKey) != ed25519.PubKeySize {
		err = ErrInvalidPubKey
		return
	}
	btx = new(QuadTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalQuadTx(dat []byte) (btx *QuadTx, err error) {
	tp := parseQuadTxType(dat)
	switch tp {
	case QuadTxTypeProposal:
		return unmarshalQuadTx[ProposalTx](dat)
	case QuadTxTypeVote:
		return unmarshalQuadTx[VoteTx](dat)
	case QuadTxTypeSetIdentity:
		return unmarshalQuadTx[SetIdentityTx](dat)
	case QuadTxTypeClearIdentity:
		return unmarshalQuadTx[ClearIdentityTx](dat)
	case QuadTxTypeKillIdentity:
		return unmarshalQuadTx[KillIdentityTx](dat)
	case QuadTxTypeForceIdentity:
		return unmarshalQuadTx[ForceIdentityTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalQuadTx(btx *QuadTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
