package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

type GenesisState map[string]json.RawMessage

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const ModuleName = "quad"
const DefaultPower = 1000

type GenesisIdentity struct {
	Address string      `json:"address"`
	Hash    common.Hash `json:"hash"`
}

// QuadGenesis is stored under GenesisState[ModuleName].
type QuadGenesis struct {
	Params     Params            `json:"params"`
	Registrar  string            `json:"registrar"`
	Identities []GenesisIdentity `json:"identities"`
}

func DefaultQuadGenesis() *QuadGenesis {
	return &QuadGenesis{
		Params:     DefaultParams(),
		Identities: []GenesisIdentity{},
	}
}

func (g *QuadGenesis) Validate() error {
	if err := g.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(g.Identities))
	for _, id := range g.Identities {
		if id.Address == "" {
			return errors.New("genesis identity without address")
		}
		if seen[id.Address] {
			return fmt.Errorf("duplicate genesis identity %v", id.Address)
		}
		seen[id.Address] = true
	}
	return nil
}

// ParseAppState extracts the module genesis from the raw app_state. An empty
// app_state yields the defaults.
func ParseAppState(appState []byte) (g *QuadGenesis, err error) {
	g = DefaultQuadGenesis()
	if len(appState) == 0 {
		return
	}
	var gs GenesisState
	if err = json.Unmarshal(appState, &gs); err != nil {
		return nil, err
	}
	raw, ok := gs[ModuleName]
	if !ok {
		return
	}
	if err = json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	err = g.Validate()
	if err != nil {
		return nil, err
	}
	return
}

func NewAppState(g *QuadGenesis) (json.RawMessage, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return json.Marshal(GenesisState{ModuleName: raw})
}
