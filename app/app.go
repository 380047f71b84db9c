package app

import (
	"context"

	"github.com/calehh/quad-app/config"
	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/tx/handler"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &QuadApp{}

type QuadApp struct {
	cfg    *config.QuadAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.QuadTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *appMetrics

	st *state.State
}

// NewQuadApp opens the state database under cfg.Home. A nil reg disables
// metrics.
func NewQuadApp(cfg *config.QuadAppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (app *QuadApp, err error) {
	logger = logger.With("module", "app")

	db, err := state.NewStateDB(cfg.DataDir(), cfg.ProposalCacheSize, logger)
	if err != nil {
		return nil, err
	}

	app = &QuadApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  make(map[tx.QuadTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
		metrics:  newAppMetrics(reg),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

func (app *QuadApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 && bs != nil {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			app.logger.Info("state ahead of block store", "height", height, "store", bs.Height())
			return
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *QuadApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("quad app stopped")
}

// SetIdentityGate replaces the identity registry as the source of
// authorization for proposals and votes.
func (app *QuadApp) SetIdentityGate(g state.IdentityGate) {
	app.db.SetIdentityGate(g)
}

func (app *QuadApp) registerTxHandler() {
	identity := handler.NewIdentityTxHandler(app.logger)
	app.txHdlrs = map[tx.QuadTxType]handler.TxHandler{
		tx.QuadTxTypeProposal:      handler.NewProposalTxHandler(app.logger),
		tx.QuadTxTypeVote:          handler.NewVoteTxHandler(app.logger),
		tx.QuadTxTypeSetIdentity:   identity,
		tx.QuadTxTypeClearIdentity: identity,
		tx.QuadTxTypeKillIdentity:  identity,
		tx.QuadTxTypeForceIdentity: identity,
	}
}

func (app *QuadApp) registerQuerier() {
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/votes/"] = NewVoteQuerier(app.db, app.logger)
	app.queriers["/identities/"] = NewIdentityQuerier(app.db, app.logger)
	app.queriers["/nonces/"] = NewNonceQuerier(app.db, app.logger)
	app.queriers["/params/"] = NewParamsQuerier(app.db, app.logger)
	app.queriers["/expiry/"] = NewExpiryQuerier(app.db, app.logger)
}

func (app *QuadApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	g, err := types.ParseAppState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	if err = st.SetParams(g.Params); err != nil {
		return nil, err
	}
	st.SetRegistrar(g.Registrar)
	for _, id := range g.Identities {
		st.AddIdentity(id.Address, id.Hash)
	}
	var genesisTick uint64
	if chain.InitialHeight > 1 {
		genesisTick = uint64(chain.InitialHeight - 1)
	}
	st.SetGenesisTick(genesisTick)

	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "params", g.Params, "identities", len(g.Identities))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *QuadApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *QuadApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *QuadApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *QuadApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

func (app *QuadApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *QuadApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *QuadApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_REJECT}, nil
}
