package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState        = "s"
	KeyProposalBody = "p%v"
	KeyExpiry       = "e%v"
	KeyVote         = "v%v/%s"
	KeyIdentity     = "i%s"
	KeyNonce        = "n%s"
)

var ErrStateHeightUnmatched = errors.New("state height unmatched")

// State is the working copy of the application state for one block. Reads go
// through per-state caches; writes stay in the caches until Update.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64
	gate   IdentityGate
	// view serves reads from the saved version once the state is committed,
	// so later writes to the working tree stay invisible to queries.
	view treeReader

	header *StateHeader

	proposals     map[uint32]*types.Proposal
	modProposals  map[uint32]bool
	buckets       map[uint64][]uint32
	modBuckets    map[uint64]bool
	votes         map[string]bool
	modVotes      map[string]bool
	identities    map[string]*Identity
	modIdentities map[string]bool
	acnts         map[string]*Account
	modAcnts      map[string]bool
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: &StateHeader{Params: types.DefaultParams()},
	}
	s.resetCaches()
	return s
}

func (s *State) resetCaches() {
	s.proposals = make(map[uint32]*types.Proposal)
	s.modProposals = make(map[uint32]bool)
	s.buckets = make(map[uint64][]uint32)
	s.modBuckets = make(map[uint64]bool)
	s.votes = make(map[string]bool)
	s.modVotes = make(map[string]bool)
	s.identities = make(map[string]*Identity)
	s.modIdentities = make(map[string]bool)
	s.acnts = make(map[string]*Account)
	s.modAcnts = make(map[string]bool)
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		gate:   s.gate,
	}
	n.resetCaches()
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *types.Proposal:
			res[k] = any(x.Clone()).(V)
		case *Identity:
			if x != nil {
				res[k] = any(x.Clone()).(V)
			} else {
				res[k] = v
			}
		case *Account:
			res[k] = any(x.Clone()).(V)
		case []uint32:
			res[k] = any(append([]uint32{}, x...)).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone returns an independent copy sharing only the backing tree. Used to
// apply a transaction tentatively.
func (s *State) Clone() *State {
	return &State{
		logger:        s.logger,
		db:            s.db,
		dbVer:         s.dbVer,
		gate:          s.gate,
		header:        s.header.Clone(),
		proposals:     deepCopyMap(s.proposals),
		modProposals:  deepCopyMap(s.modProposals),
		buckets:       deepCopyMap(s.buckets),
		modBuckets:    deepCopyMap(s.modBuckets),
		votes:         deepCopyMap(s.votes),
		modVotes:      deepCopyMap(s.modVotes),
		identities:    deepCopyMap(s.identities),
		modIdentities: deepCopyMap(s.modIdentities),
		acnts:         deepCopyMap(s.acnts),
		modAcnts:      deepCopyMap(s.modAcnts),
	}
}

type treeReader interface {
	Get(key []byte) ([]byte, error)
}

type emptyTree struct{}

func (emptyTree) Get(key []byte) ([]byte, error) {
	return nil, nil
}

// pin makes the state read from its saved tree version.
func (s *State) pin() error {
	if s.dbVer == 0 {
		s.view = emptyTree{}
		return nil
	}
	t, err := s.db.GetImmutable(s.dbVer)
	if err != nil {
		return err
	}
	s.view = t
	return nil
}

func (s *State) get(key string) (val []byte, err error) {
	if s.view != nil {
		val, err = s.view.Get([]byte(key))
	} else {
		val, err = s.db.Get([]byte(key))
	}
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return
}

func (s *State) load() (err error) {
	val, err := s.get(KeyState)
	if err != nil {
		return err
	}
	if val != nil {
		err = s.header.Unmarshal(val)
		if err != nil {
			return
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	s.dbVer = s.db.Version()
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = append(s.header.RootHash[:0], rootHash...)
		s.header.Hash = append(s.header.Hash[:0], h[:]...)
	}
	return
}

func sortedKeys[K uint32 | uint64 | string](m map[K]bool) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

// Update writes every modified entry into the working tree in a fixed order
// and returns the resulting state hash.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	var val []byte
	val, err = s.header.Marshal()
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	for _, id := range sortedKeys(s.modProposals) {
		val, err = json.Marshal(s.proposals[id])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(fmt.Sprintf(KeyProposalBody, id)), val)
		if err != nil {
			return
		}
	}

	for _, tick := range sortedKeys(s.modBuckets) {
		key := []byte(fmt.Sprintf(KeyExpiry, tick))
		ids := s.buckets[tick]
		if len(ids) == 0 {
			_, _, err = s.db.Remove(key)
		} else {
			val, err = rlp.EncodeToBytes(ids)
			if err != nil {
				return
			}
			_, err = s.db.Set(key, val)
		}
		if err != nil {
			return
		}
	}

	for _, key := range sortedKeys(s.modVotes) {
		if s.votes[key] {
			_, err = s.db.Set([]byte(key), []byte{1})
		} else {
			_, _, err = s.db.Remove([]byte(key))
		}
		if err != nil {
			return
		}
	}

	for _, addr := range sortedKeys(s.modIdentities) {
		key := []byte(fmt.Sprintf(KeyIdentity, addr))
		id := s.identities[addr]
		if id == nil {
			_, _, err = s.db.Remove(key)
		} else {
			val, err = json.Marshal(id)
			if err != nil {
				return
			}
			_, err = s.db.Set(key, val)
		}
		if err != nil {
			return
		}
	}

	for _, addr := range sortedKeys(s.modAcnts) {
		val, err = json.Marshal(s.acnts[addr])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(fmt.Sprintf(KeyNonce, addr)), val)
		if err != nil {
			return
		}
	}

	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)
	s.modProposals = make(map[uint32]bool)
	s.modBuckets = make(map[uint64]bool)
	s.modVotes = make(map[string]bool)
	s.modIdentities = make(map[string]bool)
	s.modAcnts = make(map[string]bool)
	return
}

func (s *State) modifiedProposalIds() []uint32 {
	return sortedKeys(s.modProposals)
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) Params() types.Params {
	return s.header.Params
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) SetParams(p types.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.header.Params = p
	return nil
}

func (s *State) SetRegistrar(addr string) {
	s.header.Registrar = addr
}

// SetHeight moves the state to the tick of the block being executed.
func (s *State) SetHeight(height uint64) error {
	if height < s.header.Height {
		return fmt.Errorf("%w: state %v block %v", ErrStateHeightUnmatched, s.header.Height, height)
	}
	s.header.Height = height
	return nil
}

// SetGenesisTick places the state just before the first block. Ticks up to
// and including tick are treated as resolved.
func (s *State) SetGenesisTick(tick uint64) {
	s.header.Height = tick
	s.header.LastTick = tick
}

// SetIdentityGate replaces the identity registry as the authorization source
// for proposal and vote operations. A nil gate restores the registry.
func (s *State) SetIdentityGate(g IdentityGate) {
	s.gate = g
}

func (s *State) getAccount(addr string) (acnt *Account, err error) {
	acnt = s.acnts[addr]
	if acnt != nil {
		return
	}
	val, err := s.get(fmt.Sprintf(KeyNonce, addr))
	if err != nil {
		return nil, err
	}
	acnt = &Account{Address: addr}
	if val != nil {
		err = json.Unmarshal(val, acnt)
		if err != nil {
			return nil, err
		}
	}
	s.acnts[addr] = acnt
	return
}

func (s *State) GetAccount(addr string) (acnt *Account, err error) {
	acnt, err = s.getAccount(addr)
	if acnt != nil {
		acnt = acnt.Clone()
	}
	return
}

// Verify checks the nonce and signature of a transaction. With allowNonceGap
// a nonce ahead of the stored one is accepted, as the mempool may hold
// earlier transactions of the same sender.
func (s *State) Verify(btx *tx.QuadTx, allowNonceGap bool) (succ bool, err error) {
	a, err := s.getAccount(btx.Sender())
	if err != nil {
		return succ, err
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return succ, err
	}
	succ = btx.VerifySig(dat)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}

// IncNonce consumes the nonce of addr. It is called for every verified
// transaction included in a block, whether or not the operation succeeded.
func (s *State) IncNonce(addr string) (err error) {
	a, err := s.getAccount(addr)
	if err != nil {
		return
	}
	a.Nonce += 1
	s.modAcnts[addr] = true
	return
}
