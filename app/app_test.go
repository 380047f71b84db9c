package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/calehh/quad-app/config"
	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainId = "quad-test"

type testUser struct {
	priv  ed25519.PrivKey
	nonce uint64
}

func newTestUser() *testUser {
	return &testUser{priv: ed25519.GenPrivKey()}
}

func (u *testUser) Address() string {
	return u.priv.PubKey().Address().String()
}

// sign builds a signed tx with the next nonce of u.
func (u *testUser) sign(t *testing.T, tp tx.QuadTxType, body any) []byte {
	t.Helper()
	dat := u.signNonce(t, u.nonce, tp, body)
	u.nonce++
	return dat
}

func (u *testUser) signNonce(t *testing.T, nonce uint64, tp tx.QuadTxType, body any) []byte {
	t.Helper()
	btx := &tx.QuadTx{
		Version: tx.QuadTxVersion1,
		Type:    tp,
		Nonce:   nonce,
		PubKey:  u.priv.PubKey().Bytes(),
		Tx:      body,
	}
	sigData, err := btx.SigData([]byte(testChainId))
	require.NoError(t, err)
	sig, err := u.priv.Sign(sigData)
	require.NoError(t, err)
	btx.Sig = [][]byte{sig}
	dat, err := tx.MarshalQuadTx(btx)
	require.NoError(t, err)
	return dat
}

type testChain struct {
	app    *QuadApp
	height int64

	alice, bob, carol, registrar, outsider *testUser
}

func newTestChain(t *testing.T, reg prometheus.Registerer) *testChain {
	t.Helper()
	cfg := config.DefaultQuadAppConfig(t.TempDir())
	app, err := NewQuadApp(cfg, cmtlog.NewNopLogger(), reg)
	require.NoError(t, err)
	t.Cleanup(app.Stop)

	c := &testChain{
		app:       app,
		alice:     newTestUser(),
		bob:       newTestUser(),
		carol:     newTestUser(),
		registrar: newTestUser(),
		outsider:  newTestUser(),
	}
	g := types.DefaultQuadGenesis()
	g.Params = types.Params{
		MinLength:           4,
		MaxLength:           64,
		Duration:            2,
		MaxProposalsPerTick: 2,
	}
	g.Registrar = c.registrar.Address()
	for _, u := range []*testUser{c.alice, c.bob, c.carol} {
		g.Identities = append(g.Identities, types.GenesisIdentity{
			Address: u.Address(),
			Hash:    common.HexToHash("0x01"),
		})
	}
	appState, err := types.NewAppState(g)
	require.NoError(t, err)
	res, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       testChainId,
		InitialHeight: 1,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	return c
}

// block finalizes and commits the next block holding txs.
func (c *testChain) block(t *testing.T, txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	t.Helper()
	c.height++
	res, err := c.app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: c.height,
		Txs:    txs,
		Hash:   []byte{byte(c.height)},
	})
	require.NoError(t, err)
	require.Len(t, res.TxResults, len(txs))
	_, err = c.app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(t, err)
	return res
}

func (c *testChain) query(t *testing.T, path string, data []byte) *abcitypes.ResponseQuery {
	t.Helper()
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(t, err)
	return res
}

func (c *testChain) proposal(t *testing.T, id uint32) *types.Proposal {
	t.Helper()
	res := c.query(t, "/proposals", []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)})
	require.Equal(t, uint32(0), res.Code)
	p := new(types.Proposal)
	require.NoError(t, json.Unmarshal(res.Value, p))
	return p
}

func TestProposalLifecycle(t *testing.T) {
	c := newTestChain(t, nil)

	res := c.block(t, c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("build a bridge")}))
	require.Equal(t, state.CodeOK, res.TxResults[0].Code, res.TxResults[0].Log)
	submitted := types.DecodeEventProposalSubmitted(res.TxResults[0].Events[0])
	require.NotNil(t, submitted)
	assert.Equal(t, uint32(0), submitted.Proposal)
	assert.Equal(t, uint64(4), submitted.EndTick)
	assert.Empty(t, res.Events)

	res = c.block(t,
		c.alice.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}),
		c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}),
		c.carol.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo}),
	)
	for _, r := range res.TxResults {
		require.Equal(t, state.CodeOK, r.Code, r.Log)
	}

	res = c.block(t,
		c.alice.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo}),
		c.outsider.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo}),
		c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 7, Choice: types.ChoiceNo}),
	)
	assert.Equal(t, state.CodeAlreadyVoted, res.TxResults[0].Code)
	assert.Equal(t, state.CodeUnauthorized, res.TxResults[1].Code)
	assert.Equal(t, state.CodeNotFound, res.TxResults[2].Code)

	p := c.proposal(t, 0)
	assert.Equal(t, uint32(2), p.YesCount)
	assert.Equal(t, uint32(1), p.NoCount)
	assert.Equal(t, types.ProposalStatusOpen, p.Status)

	// the proposal ends at tick 4, votes in that block are too late
	res = c.block(t, c.carol.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}))
	assert.Equal(t, state.CodeExpired, res.TxResults[0].Code)
	require.Len(t, res.Events, 2)
	assert.Equal(t, types.EventProposalEndedType, res.Events[0].Type)
	assert.Equal(t, types.EventProposalWinType, res.Events[1].Type)
	outcome := types.DecodeEventProposalOutcome(res.Events[1])
	require.NotNil(t, outcome)
	assert.Equal(t, types.OutcomeWin, outcome.Outcome)
	assert.Equal(t, uint64(4), outcome.Tick)

	p = c.proposal(t, 0)
	assert.Equal(t, types.ProposalStatusResolved, p.Status)
	assert.Equal(t, types.OutcomeWin, p.Outcome)

	res = c.block(t)
	assert.Empty(t, res.Events)
}

func TestTieLoses(t *testing.T) {
	c := newTestChain(t, nil)
	c.block(t, c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("split vote")}))
	c.block(t,
		c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}),
		c.carol.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo}),
	)
	c.block(t)
	res := c.block(t)
	require.Len(t, res.Events, 2)
	assert.Equal(t, types.EventProposalLoseType, res.Events[1].Type)
	assert.Equal(t, types.OutcomeLose, c.proposal(t, 0).Outcome)
}

func TestProposalRejections(t *testing.T) {
	c := newTestChain(t, nil)
	res := c.block(t,
		c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("no")}),
		c.bob.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: make([]byte, 65)}),
		c.outsider.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("let me in")}),
		c.carol.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("first")}),
		c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("second")}),
		c.bob.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("third")}),
	)
	assert.Equal(t, state.CodeTooShort, res.TxResults[0].Code)
	assert.Equal(t, state.CodeTooLong, res.TxResults[1].Code)
	assert.Equal(t, state.CodeUnauthorized, res.TxResults[2].Code)
	assert.Equal(t, state.CodeOK, res.TxResults[3].Code)
	assert.Equal(t, state.CodeOK, res.TxResults[4].Code)
	assert.Equal(t, state.CodeCapacityExceeded, res.TxResults[5].Code)

	params := c.query(t, "/params", nil)
	var pr ParamsResult
	require.NoError(t, json.Unmarshal(params.Value, &pr))
	assert.Equal(t, uint32(2), pr.NextProposalId)
	assert.Equal(t, testChainId, pr.ChainId)

	expiry := c.query(t, "/expiry", []byte{4})
	var ids []uint32
	require.NoError(t, json.Unmarshal(expiry.Value, &ids))
	assert.Equal(t, []uint32{0, 1}, ids)
}

func TestIdentityTxs(t *testing.T) {
	c := newTestChain(t, nil)
	target := c.outsider.Address()

	res := c.block(t,
		c.alice.sign(t, tx.QuadTxTypeForceIdentity, &tx.ForceIdentityTx{Target: target, Hash: common.HexToHash("0x02")}),
		c.registrar.sign(t, tx.QuadTxTypeForceIdentity, &tx.ForceIdentityTx{Target: target, Hash: common.HexToHash("0x02")}),
	)
	assert.Equal(t, state.CodeNotRegistrar, res.TxResults[0].Code)
	require.Equal(t, state.CodeOK, res.TxResults[1].Code, res.TxResults[1].Log)
	ev := types.DecodeEventIdentity(res.TxResults[1].Events[0])
	require.NotNil(t, ev)
	assert.Equal(t, types.EventIdentityForcedType, ev.Type)
	assert.Equal(t, target, ev.Address)

	res = c.block(t, c.outsider.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("now allowed")}))
	assert.Equal(t, state.CodeOK, res.TxResults[0].Code)

	q := c.query(t, "/identities", []byte(target))
	require.Equal(t, uint32(0), q.Code)
	var id state.Identity
	require.NoError(t, json.Unmarshal(q.Value, &id))
	assert.Equal(t, common.HexToHash("0x02"), id.Hash)

	res = c.block(t,
		c.outsider.sign(t, tx.QuadTxTypeClearIdentity, &tx.ClearIdentityTx{}),
		c.outsider.sign(t, tx.QuadTxTypeClearIdentity, &tx.ClearIdentityTx{}),
		c.registrar.sign(t, tx.QuadTxTypeKillIdentity, &tx.KillIdentityTx{Target: c.bob.Address()}),
		c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}),
	)
	assert.Equal(t, state.CodeOK, res.TxResults[0].Code)
	assert.Equal(t, state.CodeIdentityNotFound, res.TxResults[1].Code)
	assert.Equal(t, state.CodeOK, res.TxResults[2].Code)
	assert.Equal(t, state.CodeUnauthorized, res.TxResults[3].Code)

	q = c.query(t, "/identities", []byte(target))
	assert.Equal(t, uint32(QueryCodeNotFound), q.Code)

	// failed transactions still consume the nonce
	q = c.query(t, "/nonces", []byte(c.outsider.Address()))
	var acnt state.Account
	require.NoError(t, json.Unmarshal(q.Value, &acnt))
	assert.Equal(t, uint64(3), acnt.Nonce)
}

func TestCheckTx(t *testing.T) {
	c := newTestChain(t, nil)
	ctx := context.Background()
	check := func(dat []byte) uint32 {
		res, err := c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: dat})
		require.NoError(t, err)
		return res.Code
	}

	assert.Equal(t, state.CodeOK, check(c.alice.signNonce(t, 0, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("valid text")})))
	// a nonce ahead of the stored one may wait in the mempool
	assert.Equal(t, state.CodeOK, check(c.alice.signNonce(t, 3, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("valid text")})))
	assert.Equal(t, state.CodeUnauthorized, check(c.outsider.signNonce(t, 0, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("valid text")})))
	assert.Equal(t, state.CodeTooShort, check(c.alice.signNonce(t, 0, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("x")})))
	assert.Equal(t, state.CodeNotFound, check(c.alice.signNonce(t, 0, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes})))
	assert.Equal(t, state.CodeInternal, check([]byte("not a tx")))

	c.block(t, c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("valid text")}))
	assert.Equal(t, state.CodeNonceInvalid, check(c.alice.signNonce(t, 0, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes})))
	assert.Equal(t, state.CodeOK, check(c.alice.signNonce(t, 1, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes})))

	forged := c.bob.signNonce(t, 0, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes})
	btx, err := tx.UnmarshalQuadTx(forged)
	require.NoError(t, err)
	btx.Tx = &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo}
	forged, err = tx.MarshalQuadTx(btx)
	require.NoError(t, err)
	assert.Equal(t, state.CodeSigInvalid, check(forged))
}

func TestPrepareAndProcessProposal(t *testing.T) {
	c := newTestChain(t, nil)
	ctx := context.Background()
	c.block(t, c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("valid text")}))

	good1 := c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes})
	dup := c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo})
	outsider := c.outsider.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo})
	good2 := c.carol.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceNo})

	prep, err := c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Height:     2,
		Txs:        [][]byte{good1, dup, outsider, good2},
		MaxTxBytes: 1 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good1, good2}, prep.Txs)

	prep, err = c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Height:     2,
		Txs:        [][]byte{good1, good2},
		MaxTxBytes: int64(len(good1)),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good1}, prep.Txs)

	proc, err := c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 2, Txs: [][]byte{good1, good2}})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	// domain failures are accepted and reported in the block results
	proc, err = c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 2, Txs: [][]byte{good1, dup}})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 2, Txs: [][]byte{good1, []byte("junk")}})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)

	// nothing above touched the committed state
	assert.Equal(t, uint32(0), c.proposal(t, 0).YesCount)
}

func TestInfoAndRestart(t *testing.T) {
	home := t.TempDir()
	cfg := config.DefaultQuadAppConfig(home)
	app, err := NewQuadApp(cfg, cmtlog.NewNopLogger(), nil)
	require.NoError(t, err)
	c := &testChain{app: app, alice: newTestUser()}

	g := types.DefaultQuadGenesis()
	g.Identities = []types.GenesisIdentity{{Address: c.alice.Address(), Hash: common.HexToHash("0x01")}}
	appState, err := types.NewAppState(g)
	require.NoError(t, err)
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: testChainId, InitialHeight: 1, AppStateBytes: appState})
	require.NoError(t, err)

	c.block(t, c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("persist me")}))
	res := c.block(t)

	info, err := app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.LastBlockHeight)
	assert.Equal(t, res.AppHash, info.LastBlockAppHash)
	app.Stop()

	app, err = NewQuadApp(cfg, cmtlog.NewNopLogger(), nil)
	require.NoError(t, err)
	defer app.Stop()
	info, err = app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.LastBlockHeight)
	assert.Equal(t, res.AppHash, info.LastBlockAppHash)

	c.app = app
	p := c.proposal(t, 0)
	assert.Equal(t, []byte("persist me"), p.Text)
}

func TestQueryUnknownPath(t *testing.T) {
	c := newTestChain(t, nil)
	assert.Equal(t, uint32(QueryCodeNoPath), c.query(t, "/unknown", nil).Code)
	assert.Equal(t, uint32(QueryCodeInvalidData), c.query(t, "/proposals", nil).Code)
	assert.Equal(t, uint32(QueryCodeNotFound), c.query(t, "/proposals", []byte{9}).Code)

	dat, err := json.Marshal(&VoteQuery{Proposal: 0, Voter: c.alice.Address()})
	require.NoError(t, err)
	q := c.query(t, "/votes", dat)
	require.Equal(t, uint32(0), q.Code)
	var vr VoteQueryResult
	require.NoError(t, json.Unmarshal(q.Value, &vr))
	assert.False(t, vr.Voted)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestChain(t, reg)
	c.block(t,
		c.alice.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("measured")}),
		c.outsider.sign(t, tx.QuadTxTypeProposal, &tx.ProposalTx{Text: []byte("measured")}),
	)
	c.block(t, c.bob.sign(t, tx.QuadTxTypeVote, &tx.VoteTx{Proposal: 0, Choice: types.ChoiceYes}))
	c.block(t)
	c.block(t)

	m := c.app.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTx.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolved.WithLabelValues(types.OutcomeWin.String())))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.lastTick))
}
