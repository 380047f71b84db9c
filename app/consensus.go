package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoHandler           = errors.New("no handler for tx type")
)

// blockState returns a working state positioned at the tick of height.
func (app *QuadApp) blockState(height int64) (st *state.State, err error) {
	st = app.db.NewState()
	if height > 0 {
		err = st.SetHeight(uint64(height))
	}
	return
}

func (app *QuadApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.QuadTx, err error) {
	btx, err = tx.UnmarshalQuadTx(txDat)
	if err != nil {
		return
	}
	if _, ok := app.txHdlrs[btx.Type]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoHandler, btx.Type)
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *QuadApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: state.CodeOK}
	st := app.db.NewState()
	btx, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = state.ErrorCode(err)
		res.Log = err.Error()
		err = nil
		return
	}
	app.logger.Debug("check tx", "type", btx.Type, "sender", btx.Sender())
	res, err = app.txHdlrs[btx.Type].Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: state.CodeInternal, Log: err.Error()}
		err = nil
	}
	return
}

// applyTx verifies btx against st, consumes its nonce and runs its handler.
// An error means the state could not be read or written.
func (app *QuadApp) applyTx(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ExecTxResult, err error) {
	if err = st.IncNonce(btx.Sender()); err != nil {
		return
	}
	res, err = app.txHdlrs[btx.Type].Process(ctx, st, btx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrUnexpectedTxProcess
	}
	return
}

func (app *QuadApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st, err := app.blockState(proposal.Height)
	if err != nil {
		return nil, err
	}
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		btx, err := app.parseTx(st, stx, false)
		if err != nil {
			app.logger.Info("drop tx, parse fail", "err", err)
			continue
		}
		stTmp := st.Clone()
		result, err := app.applyTx(ctx, stTmp, btx)
		if err != nil {
			app.logger.Error("prepare tx fail", "type", btx.Type, "err", err)
			continue
		}
		if result.Code != state.CodeOK {
			app.logger.Info("drop tx, rejected", "type", btx.Type, "code", result.Code, "log", result.Log)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// execute applies txs in order. Transactions that cannot be parsed or
// verified get a failing result and change nothing.
func (app *QuadApp) execute(ctx context.Context, st *state.State, txs [][]byte) (res []*abcitypes.ExecTxResult, invalid int, err error) {
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		btx, err1 := app.parseTx(st, stx, false)
		if err1 != nil {
			invalid++
			res[i] = &abcitypes.ExecTxResult{Code: state.ErrorCode(err1), Log: err1.Error()}
			continue
		}
		var result *abcitypes.ExecTxResult
		result, err = app.applyTx(ctx, st, btx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
			return nil, 0, err
		}
		res[i] = result
	}
	return
}

func (app *QuadApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	st, err := app.blockState(proposal.Height)
	if err != nil {
		app.logger.Error("ProcessProposal state fail", "err", err)
		return res, nil
	}
	_, invalid, err := app.execute(ctx, st, proposal.Txs)
	if err != nil {
		app.logger.Error("process fail", "err", err)
		return res, nil
	}
	if invalid > 0 {
		app.logger.Info("proposal rejected", "height", proposal.Height, "invalid", invalid)
		return res, nil
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height)
	return res, nil
}

func (app *QuadApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st, err := app.blockState(req.Height)
	if err != nil {
		app.logger.Error("FinalizeBlock state fail", "err", err)
		return nil, err
	}
	res, _, err := app.execute(ctx, st, req.Txs)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		var eventType string
		if len(r.Events) > 0 {
			eventType = r.Events[0].Type
		}
		app.metrics.observeTxResult(eventType, r.Code)
	}

	resolved, err := st.OnTick(uint64(req.Height))
	if err != nil {
		app.logger.Error("resolve tick fail", "height", req.Height, "err", err)
		return nil, err
	}
	events := make([]abcitypes.Event, 0, 2*len(resolved))
	for _, ev := range resolved {
		events = append(events, types.EncodeEventProposalResolved(ev)...)
		app.metrics.observeResolved(ev.Outcome)
	}

	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.metrics.observeBlock(len(req.Txs))
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
		Events:    events,
	}, nil
}

func (app *QuadApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.metrics.setLastTick(app.st.Header().LastTick)
	app.logger.Info("Commit", "height", app.st.Header().Height)
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
