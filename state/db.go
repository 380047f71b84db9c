package state

import (
	"sync"

	"github.com/calehh/quad-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultProposalCacheSize = 1024

// StateDB owns the committed state and hands out working states for new
// blocks.
type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	ldb    dbm.DB
	db     *iavl.MutableTree
	cache  *lru.Cache[uint32, *types.Proposal]

	state *State
}

func NewStateDB(dir string, cacheSize int, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "quaddb")
	ldb, err := dbm.NewDB("quad", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultProposalCacheSize
	}
	cache, err := lru.New[uint32, *types.Proposal](cacheSize)
	if err != nil {
		return nil, err
	}
	tdb := iavl.NewMutableTree(ldb, 128, true, newTreeLogger(logger, false))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("from quaddb load fail", "err", err)
		return nil, err
	}
	if err = st.pin(); err != nil {
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		ldb:    ldb,
		db:     tdb,
		cache:  cache,
		state:  st,
	}
	return
}

// Close releases the tree and the underlying leveldb, which the tree does
// not close on its own.
func (db *StateDB) Close() (err error) {
	if err = db.db.Close(); err != nil {
		return
	}
	err = db.ldb.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

// SetIdentityGate installs g on the committed state and every state derived
// from it.
func (db *StateDB) SetIdentityGate(g IdentityGate) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.state.SetIdentityGate(g)
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	modified := st.modifiedProposalIds()
	hash, err = st.save()
	if err != nil {
		return
	}
	if err = st.pin(); err != nil {
		return
	}
	for _, id := range modified {
		db.cache.Remove(id)
	}
	db.state = st
	return
}

// The getters below read the committed state, which is pinned to the last
// saved tree version. Cache loads on the committed state mutate its maps, so
// they take the write lock.

func (db *StateDB) GetProposal(id uint32) (p *types.Proposal, height uint64, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	height = db.state.header.Height
	if p, ok := db.cache.Get(id); ok {
		return p.Clone(), height, nil
	}
	p, err = db.state.GetProposal(id)
	if err != nil || p == nil {
		return
	}
	db.cache.Add(id, p.Clone())
	return
}

func (db *StateDB) HasVoted(id uint32, voter string) (voted bool, height uint64, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	voted, err = db.state.HasVoted(id, voter)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetIdentity(addr string) (id *Identity, height uint64, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	id, err = db.state.GetIdentity(addr)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetAccount(addr string) (acnt *Account, height uint64, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	acnt, err = db.state.GetAccount(addr)
	height = db.state.header.Height
	return
}

func (db *StateDB) ExpiringAt(tick uint64) (ids []uint32, height uint64, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	ids, err = db.state.ExpiringAt(tick)
	height = db.state.header.Height
	return
}
