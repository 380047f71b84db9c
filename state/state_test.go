package state

import (
	"testing"

	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "A11CE00000000000000000000000000000000000"
	bob   = "B0B0000000000000000000000000000000000000"
	carol = "CA20100000000000000000000000000000000000"
	dave  = "DA7E000000000000000000000000000000000000"
	eve   = "E7E0000000000000000000000000000000000000"
)

func testParams() types.Params {
	return types.Params{
		MinLength:           2,
		MaxLength:           60,
		Duration:            2,
		MaxProposalsPerTick: 3,
	}
}

func newTestDB(t *testing.T, dir string) *StateDB {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	db, err := NewStateDB(dir, 16, cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

// genesis commits a state holding params and identities for alice, bob
// and carol. Registrar is dave.
func genesis(t *testing.T, db *StateDB) {
	t.Helper()
	st := db.NewState()
	st.SetChainId("test-chain")
	require.NoError(t, st.SetParams(testParams()))
	st.SetRegistrar(dave)
	for _, addr := range []string{alice, bob, carol} {
		st.AddIdentity(addr, common.HexToHash("0x01"))
	}
	_, err := st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)
}

// newTestState returns an uncommitted state at tick 0 with genesis applied.
func newTestState(t *testing.T) *State {
	t.Helper()
	db := newTestDB(t, "")
	st := db.NewState()
	require.NoError(t, st.SetParams(testParams()))
	st.SetRegistrar(dave)
	for _, addr := range []string{alice, bob, carol} {
		st.AddIdentity(addr, common.HexToHash("0x01"))
	}
	return st
}

// commitBlock runs fn on a fresh state at the next height and commits it.
func commitBlock(t *testing.T, db *StateDB, fn func(st *State)) common.Hash {
	t.Helper()
	st := db.NewState()
	if fn != nil {
		fn(st)
	}
	_, err := st.OnTick(st.Header().Height)
	require.NoError(t, err)
	h, err := st.Update()
	require.NoError(t, err)
	saved, err := db.SetState(st)
	require.NoError(t, err)
	require.Equal(t, h, saved)
	return saved
}

func TestNextStateAdvancesHeight(t *testing.T) {
	db := newTestDB(t, "")
	st := db.NewState()
	assert.Equal(t, uint64(0), st.Header().Height)
	genesis(t, db)
	assert.Equal(t, uint64(1), db.NewState().Header().Height)
	commitBlock(t, db, nil)
	assert.Equal(t, uint64(2), db.NewState().Header().Height)
	assert.Equal(t, uint64(1), db.Header().LastTick)
}

func TestSetHeightRejectsPast(t *testing.T) {
	db := newTestDB(t, "")
	genesis(t, db)
	st := db.NewState()
	require.ErrorIs(t, st.SetHeight(0), ErrStateHeightUnmatched)
	require.NoError(t, st.SetHeight(5))
	assert.Equal(t, uint64(5), st.Header().Height)
}

func TestCloneIsIndependent(t *testing.T) {
	st := newTestState(t)
	_, err := st.SubmitProposal(alice, []byte("first"), false)
	require.NoError(t, err)

	c := st.Clone()
	_, err = c.VoteProposal(bob, 0, types.ChoiceYes, false)
	require.NoError(t, err)
	_, err = c.SubmitProposal(alice, []byte("second"), false)
	require.NoError(t, err)

	p, err := st.GetProposal(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), p.YesCount)
	assert.Equal(t, uint32(1), st.Header().NextProposalId)
	voted, err := st.HasVoted(0, bob)
	require.NoError(t, err)
	assert.False(t, voted)

	p, err = c.GetProposal(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.YesCount)
	assert.Equal(t, uint32(2), c.Header().NextProposalId)
}

func TestTallySurvivesCommitAndReload(t *testing.T) {
	dir := t.TempDir()
	db := newTestDB(t, dir)
	genesis(t, db)
	commitBlock(t, db, func(st *State) {
		_, err := st.SubmitProposal(alice, []byte("persist me"), false)
		require.NoError(t, err)
	})
	commitBlock(t, db, func(st *State) {
		_, err := st.VoteProposal(bob, 0, types.ChoiceYes, false)
		require.NoError(t, err)
	})
	commitBlock(t, db, func(st *State) {
		_, err := st.VoteProposal(carol, 0, types.ChoiceNo, false)
		require.NoError(t, err)
	})

	p, _, err := db.GetProposal(0)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint32(1), p.YesCount)
	assert.Equal(t, uint32(1), p.NoCount)
	hash := db.Header().Hash
	require.NoError(t, db.Close())

	db = newTestDB(t, dir)
	defer db.Close()
	p, height, err := db.GetProposal(0)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(3), height)
	assert.Equal(t, uint32(1), p.YesCount)
	assert.Equal(t, uint32(1), p.NoCount)
	assert.Equal(t, hash, db.Header().Hash)
	voted, _, err := db.HasVoted(0, bob)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestQueryCacheInvalidatedOnCommit(t *testing.T) {
	db := newTestDB(t, "")
	genesis(t, db)
	commitBlock(t, db, func(st *State) {
		_, err := st.SubmitProposal(alice, []byte("cached"), false)
		require.NoError(t, err)
	})
	p, _, err := db.GetProposal(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), p.YesCount)

	commitBlock(t, db, func(st *State) {
		_, err := st.VoteProposal(bob, 0, types.ChoiceYes, false)
		require.NoError(t, err)
	})
	p, _, err = db.GetProposal(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.YesCount)
}

func TestCommittedReadsIgnoreWorkingTree(t *testing.T) {
	db := newTestDB(t, "")
	defer db.Close()
	genesis(t, db)
	commitBlock(t, db, func(st *State) {
		_, err := st.SubmitProposal(alice, []byte("pending"), false)
		require.NoError(t, err)
	})

	st := db.NewState()
	_, err := st.VoteProposal(bob, 0, types.ChoiceYes, false)
	require.NoError(t, err)
	st.AddIdentity(eve, common.HexToHash("0x02"))
	_, err = st.OnTick(st.Header().Height)
	require.NoError(t, err)
	_, err = st.Update()
	require.NoError(t, err)

	voted, _, err := db.HasVoted(0, bob)
	require.NoError(t, err)
	assert.False(t, voted)
	id, _, err := db.GetIdentity(eve)
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = db.SetState(st)
	require.NoError(t, err)
	voted, _, err = db.HasVoted(0, bob)
	require.NoError(t, err)
	assert.True(t, voted)
	id, _, err = db.GetIdentity(eve)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, common.HexToHash("0x02"), id.Hash)
}

func TestReplayDeterminism(t *testing.T) {
	run := func() []common.Hash {
		db := newTestDB(t, "")
		defer db.Close()
		genesis(t, db)
		var hashes []common.Hash
		hashes = append(hashes, commitBlock(t, db, func(st *State) {
			_, _ = st.SubmitProposal(alice, []byte("one"), false)
			_, _ = st.SubmitProposal(bob, []byte("two"), false)
			_, _ = st.SubmitProposal(eve, []byte("rejected"), false)
		}))
		hashes = append(hashes, commitBlock(t, db, func(st *State) {
			_, _ = st.VoteProposal(carol, 0, types.ChoiceYes, false)
			_, _ = st.VoteProposal(alice, 1, types.ChoiceNo, false)
			_, _ = st.VoteProposal(alice, 1, types.ChoiceYes, false)
		}))
		for i := 0; i < 3; i++ {
			hashes = append(hashes, commitBlock(t, db, nil))
		}
		return hashes
	}
	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0], first[1])
}

func TestVerifyNonceAndSignature(t *testing.T) {
	st := newTestState(t)
	st.SetChainId("test-chain")
	priv := ed25519.GenPrivKey()
	btx := &tx.QuadTx{
		Version: tx.QuadTxVersion1,
		Type:    tx.QuadTxTypeProposal,
		Nonce:   0,
		PubKey:  priv.PubKey().Bytes(),
		Tx:      &tx.ProposalTx{Text: []byte("hello")},
	}
	dat, err := btx.SigData([]byte("test-chain"))
	require.NoError(t, err)
	sig, err := priv.Sign(dat)
	require.NoError(t, err)
	btx.Sig = [][]byte{sig}

	ok, err := st.Verify(btx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.IncNonce(btx.Sender()))
	_, err = st.Verify(btx, false)
	assert.ErrorIs(t, err, ErrTxNonceInvalid)

	btx.Nonce = 3
	_, err = st.Verify(btx, true)
	assert.ErrorIs(t, err, ErrTxSigInvalid)

	st.SetChainId("other-chain")
	btx.Nonce = 1
	_, err = st.Verify(btx, false)
	assert.ErrorIs(t, err, ErrTxSigInvalid)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeOK, ErrorCode(nil))
	assert.Equal(t, CodeUnauthorized, ErrorCode(ErrIdentityRequired))
	assert.Equal(t, CodeCapacityExceeded, ErrorCode(ErrTooManyProposalsAtTick))
	assert.Equal(t, CodeOverflow, ErrorCode(ErrTallyOverflow))
	assert.Equal(t, CodeOverflow, ErrorCode(ErrProposalIdOverflow))
	assert.Equal(t, CodeInternal, ErrorCode(ErrResolveMissingProposal))
}
