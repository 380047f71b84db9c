package handler

import (
	"context"

	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// TxHandler applies one transaction type. Check validates against st without
// changing it. Process applies the transaction; a rejected operation is
// reported through the result code and leaves st unchanged. Storage and
// decode faults are returned as errors and abort the block.
type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, st *state.State, btx *tx.QuadTx) (res *abcitypes.ExecTxResult, err error)
}

func checkResult(err error) *abcitypes.ResponseCheckTx {
	res := &abcitypes.ResponseCheckTx{Code: state.ErrorCode(err)}
	if err != nil {
		res.Log = err.Error()
	}
	return res
}

func execResult(err error, events ...abcitypes.Event) *abcitypes.ExecTxResult {
	res := &abcitypes.ExecTxResult{Code: state.ErrorCode(err)}
	if err != nil {
		res.Log = err.Error()
		return res
	}
	res.Events = events
	return res
}

// isFault reports whether err is a local fault rather than a rejected
// operation. Faults must not be committed as a tx result.
func isFault(err error) bool {
	return err != nil && state.ErrorCode(err) == state.CodeInternal
}
