package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// bucket returns the cached ids ending at tick. The slice must not be
// modified by callers.
func (s *State) bucket(tick uint64) (ids []uint32, err error) {
	if ids, ok := s.buckets[tick]; ok {
		return ids, nil
	}
	val, err := s.get(fmt.Sprintf(KeyExpiry, tick))
	if err != nil {
		return nil, err
	}
	ids = []uint32{}
	if val != nil {
		err = rlp.DecodeBytes(val, &ids)
		if err != nil {
			return nil, err
		}
	}
	s.buckets[tick] = ids
	return
}

// RegisterExpiry appends id to the bucket of tick. A full bucket is left
// untouched.
func (s *State) RegisterExpiry(tick uint64, id uint32) (err error) {
	ids, err := s.bucket(tick)
	if err != nil {
		return
	}
	if len(ids) >= int(s.header.Params.MaxProposalsPerTick) {
		return ErrTooManyProposalsAtTick
	}
	n := make([]uint32, len(ids), len(ids)+1)
	copy(n, ids)
	s.buckets[tick] = append(n, id)
	s.modBuckets[tick] = true
	return
}

// TakeAndClearExpiry drains the bucket of tick and returns its ids in
// registration order. A second call for the same tick returns nothing.
func (s *State) TakeAndClearExpiry(tick uint64) (ids []uint32, err error) {
	ids, err = s.bucket(tick)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.buckets[tick] = []uint32{}
		s.modBuckets[tick] = true
	}
	return
}

// ExpiringAt returns a copy of the ids ending at tick.
func (s *State) ExpiringAt(tick uint64) ([]uint32, error) {
	ids, err := s.bucket(tick)
	if err != nil {
		return nil, err
	}
	return append([]uint32{}, ids...), nil
}
