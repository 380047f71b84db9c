package state

import (
	"encoding/json"

	"github.com/calehh/quad-app/types"
)

type StateHeader struct {
	ChainId string `json:"chain_id"`
	// Height is the current tick.
	Height         uint64       `json:"height"`
	NextProposalId uint32       `json:"next_proposal_id"`
	LastTick       uint64       `json:"last_tick"`
	Params         types.Params `json:"params"`
	Registrar      string       `json:"registrar"`
	RootHash       []byte       `json:"root_hash"`
	Hash           []byte       `json:"hash"`
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	if h.RootHash != nil {
		n.RootHash = append([]byte(nil), h.RootHash...)
	}
	if h.Hash != nil {
		n.Hash = append([]byte(nil), h.Hash...)
	}
	return &n
}

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

func (h *StateHeader) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

func (h *StateHeader) Unmarshal(dat []byte) error {
	return json.Unmarshal(dat, h)
}
