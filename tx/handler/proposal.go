package handler

import (
	"context"

	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewProposalTxHandler(logger cmtlog.Logger) (h *ProposalTxHandler) {
	logger = logger.With("module", "proposalTx")
	h = &ProposalTxHandler{
		logger: logger,
	}
	return
}

func (h *ProposalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.ProposalTx)
	_, err1 := st.SubmitProposal(btx.Sender(), stx.Text, true)
	if err1 != nil {
		h.logger.Info("CheckTx ProposalTx fail", "err", err1)
	}
	res = checkResult(err1)
	return
}

func (h *ProposalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.ProposalTx)
	event, err1 := st.SubmitProposal(btx.Sender(), stx.Text, false)
	if isFault(err1) {
		return nil, err1
	}
	if err1 != nil {
		h.logger.Info("ProposalTx rejected", "sender", btx.Sender(), "err", err1)
		return execResult(err1), nil
	}
	return execResult(nil, types.EncodeEventProposalSubmitted(event)), nil
}
