package state

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/quad-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// IdentityGate decides whether a participant may submit or vote.
type IdentityGate interface {
	IsAuthorized(participant string) bool
}

type Identity struct {
	Address string      `json:"address"`
	Hash    common.Hash `json:"hash"`
}

func (i *Identity) Clone() *Identity {
	n := *i
	return &n
}

func (s *State) identity(addr string) (id *Identity, err error) {
	if id, ok := s.identities[addr]; ok {
		return id, nil
	}
	val, err := s.get(fmt.Sprintf(KeyIdentity, addr))
	if err != nil {
		return nil, err
	}
	if val != nil {
		id = new(Identity)
		err = json.Unmarshal(val, id)
		if err != nil {
			return nil, err
		}
	}
	s.identities[addr] = id
	return
}

func (s *State) GetIdentity(addr string) (id *Identity, err error) {
	id, err = s.identity(addr)
	if id != nil {
		id = id.Clone()
	}
	return
}

func (s *State) IsIdentified(addr string) (bool, error) {
	id, err := s.identity(addr)
	if err != nil {
		return false, err
	}
	return id != nil, nil
}

// IsAuthorized implements IdentityGate on the registry.
func (s *State) IsAuthorized(addr string) bool {
	ok, err := s.IsIdentified(addr)
	if err != nil {
		s.logger.Error("load identity fail", "address", addr, "err", err)
		return false
	}
	return ok
}

func (s *State) authorize(caller string) error {
	if s.gate != nil {
		if !s.gate.IsAuthorized(caller) {
			return ErrIdentityRequired
		}
		return nil
	}
	ok, err := s.IsIdentified(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdentityRequired
	}
	return nil
}

func (s *State) putIdentity(addr string, hash common.Hash) {
	s.identities[addr] = &Identity{Address: addr, Hash: hash}
	s.modIdentities[addr] = true
}

func (s *State) removeIdentity(addr string) {
	s.identities[addr] = nil
	s.modIdentities[addr] = true
}

func (s *State) checkRegistrar(caller string) error {
	if s.header.Registrar == "" || s.header.Registrar != caller {
		return ErrNotRegistrar
	}
	return nil
}

// SetIdentity sets or replaces the caller's identity hash.
func (s *State) SetIdentity(caller string, hash common.Hash, checkOnly bool) (event *types.EventIdentity, err error) {
	s.logger.Debug("apply set identity", "address", caller, "height", s.header.Height)
	if checkOnly {
		return
	}
	s.putIdentity(caller, hash)
	event = &types.EventIdentity{Type: types.EventIdentitySetType, Address: caller, Hash: hash}
	return
}

func (s *State) ClearIdentity(caller string, checkOnly bool) (event *types.EventIdentity, err error) {
	s.logger.Debug("apply clear identity", "address", caller, "height", s.header.Height)
	id, err := s.identity(caller)
	if err != nil {
		return
	}
	if id == nil {
		return nil, ErrIdentityNotFound
	}
	if checkOnly {
		return
	}
	s.removeIdentity(caller)
	event = &types.EventIdentity{Type: types.EventIdentityClearedType, Address: caller, Hash: id.Hash}
	return
}

// KillIdentity removes target's identity. Registrar only.
func (s *State) KillIdentity(caller, target string, checkOnly bool) (event *types.EventIdentity, err error) {
	s.logger.Debug("apply kill identity", "registrar", caller, "target", target, "height", s.header.Height)
	if err = s.checkRegistrar(caller); err != nil {
		return
	}
	id, err := s.identity(target)
	if err != nil {
		return
	}
	if id == nil {
		return nil, ErrIdentityNotFound
	}
	if checkOnly {
		return
	}
	s.removeIdentity(target)
	event = &types.EventIdentity{Type: types.EventIdentityKilledType, Address: target, Hash: id.Hash}
	return
}

// ForceIdentity sets target's identity hash. Registrar only.
func (s *State) ForceIdentity(caller, target string, hash common.Hash, checkOnly bool) (event *types.EventIdentity, err error) {
	s.logger.Debug("apply force identity", "registrar", caller, "target", target, "height", s.header.Height)
	if err = s.checkRegistrar(caller); err != nil {
		return
	}
	if checkOnly {
		return
	}
	s.putIdentity(target, hash)
	event = &types.EventIdentity{Type: types.EventIdentityForcedType, Address: target, Hash: hash}
	return
}

// AddIdentity seeds an identity at genesis.
func (s *State) AddIdentity(addr string, hash common.Hash) {
	s.putIdentity(addr, hash)
}
