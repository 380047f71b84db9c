package handler

import (
	"context"

	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// IdentityTxHandler serves the four identity registry transaction types.
type IdentityTxHandler struct {
	logger cmtlog.Logger
}

func NewIdentityTxHandler(logger cmtlog.Logger) (h *IdentityTxHandler) {
	logger = logger.With("module", "identityTx")
	h = &IdentityTxHandler{
		logger: logger,
	}
	return
}

func (h *IdentityTxHandler) apply(st *state.State, btx *tx.QuadTx, checkOnly bool) (*types.EventIdentity, error) {
	sender := btx.Sender()
	switch stx := btx.Tx.(type) {
	case *tx.SetIdentityTx:
		return st.SetIdentity(sender, stx.Hash, checkOnly)
	case *tx.ClearIdentityTx:
		return st.ClearIdentity(sender, checkOnly)
	case *tx.KillIdentityTx:
		return st.KillIdentity(sender, stx.Target, checkOnly)
	case *tx.ForceIdentityTx:
		return st.ForceIdentity(sender, stx.Target, stx.Hash, checkOnly)
	}
	return nil, tx.ErrUnsupportedTxType
}

func (h *IdentityTxHandler) Check(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ResponseCheckTx, err error) {
	_, err1 := h.apply(st, btx, true)
	if err1 != nil {
		h.logger.Info("CheckTx identity fail", "type", btx.Type, "err", err1)
	}
	res = checkResult(err1)
	return
}

func (h *IdentityTxHandler) Process(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ExecTxResult, err error) {
	event, err1 := h.apply(st, btx, false)
	if isFault(err1) {
		return nil, err1
	}
	if err1 != nil {
		h.logger.Info("identity tx rejected", "type", btx.Type, "sender", btx.Sender(), "err", err1)
		return execResult(err1), nil
	}
	return execResult(nil, types.EncodeEventIdentity(event)), nil
}
