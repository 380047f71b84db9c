package handler

import (
	"context"

	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
	}
	return
}

func (h *VoteTxHandler) Check(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.VoteTx)
	_, err1 := st.VoteProposal(btx.Sender(), stx.Proposal, stx.Choice, true)
	if err1 != nil {
		h.logger.Info("CheckTx VoteTx fail", "err", err1)
	}
	res = checkResult(err1)
	return
}

func (h *VoteTxHandler) Process(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.VoteTx)
	event, err1 := st.VoteProposal(btx.Sender(), stx.Proposal, stx.Choice, false)
	if isFault(err1) {
		return nil, err1
	}
	if err1 != nil {
		h.logger.Info("VoteTx rejected", "sender", btx.Sender(), "proposal", stx.Proposal, "err", err1)
		return execResult(err1), nil
	}
	return execResult(nil, types.EncodeEventVoteSubmitted(event)), nil
}
