package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/calehh/quad-app/state"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const (
	QueryCodeNotFound    = 1
	QueryCodeInvalidData = 2
	QueryCodeNoPath      = 404
)

func (app *QuadApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNoPath
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// decodeIndex reads a big-endian unsigned integer of at most size bytes.
func decodeIndex(dat []byte, size int) (idx uint64, ok bool) {
	if len(dat) == 0 || len(dat) > size {
		return 0, false
	}
	for _, v := range dat {
		idx <<= 8
		idx |= uint64(v)
	}
	return idx, true
}

type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		db:     db,
		logger: logger,
	}
	return
}

// Query takes the big-endian proposal id as data.
func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	id, ok := decodeIndex(req.Data, 4)
	if !ok {
		res.Code = QueryCodeInvalidData
		return
	}
	p, height, err := q.db.GetProposal(uint32(id))
	if err != nil {
		q.logger.Error("query proposal fail", "id", id, "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	if p == nil {
		res.Code = QueryCodeNotFound
		return
	}
	res.Value, _ = json.Marshal(p)
	return
}

// VoteQuery asks whether Voter has voted on Proposal.
type VoteQuery struct {
	Proposal uint32 `json:"proposal"`
	Voter    string `json:"voter"`
}

type VoteQueryResult struct {
	Proposal uint32 `json:"proposal"`
	Voter    string `json:"voter"`
	Voted    bool   `json:"voted"`
}

type VoteQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewVoteQuerier(db *state.StateDB, logger cmtlog.Logger) (q *VoteQuerier) {
	q = &VoteQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *VoteQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	var vq VoteQuery
	if json.Unmarshal(req.Data, &vq) != nil || vq.Voter == "" {
		res.Code = QueryCodeInvalidData
		return
	}
	voted, height, err := q.db.HasVoted(vq.Proposal, vq.Voter)
	if err != nil {
		q.logger.Error("query vote fail", "id", vq.Proposal, "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(&VoteQueryResult{
		Proposal: vq.Proposal,
		Voter:    vq.Voter,
		Voted:    voted,
	})
	return
}

type IdentityQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewIdentityQuerier(db *state.StateDB, logger cmtlog.Logger) (q *IdentityQuerier) {
	q = &IdentityQuerier{
		db:     db,
		logger: logger,
	}
	return
}

// Query takes the address as data.
func (q *IdentityQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) == 0 {
		res.Code = QueryCodeInvalidData
		return
	}
	id, height, err := q.db.GetIdentity(string(req.Data))
	if err != nil {
		q.logger.Error("query identity fail", "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	if id == nil {
		res.Code = QueryCodeNotFound
		return
	}
	res.Value, _ = json.Marshal(id)
	return
}

type NonceQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewNonceQuerier(db *state.StateDB, logger cmtlog.Logger) (q *NonceQuerier) {
	q = &NonceQuerier{
		db:     db,
		logger: logger,
	}
	return
}

// Query takes the address as data. Unknown addresses report nonce zero.
func (q *NonceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) == 0 {
		res.Code = QueryCodeInvalidData
		return
	}
	a, height, err := q.db.GetAccount(string(req.Data))
	if err != nil {
		q.logger.Error("query nonce fail", "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = a.MarshalJSON()
	return
}

// ParamsResult is the chain configuration reported by the params query.
type ParamsResult struct {
	ChainId        string `json:"chain_id"`
	Registrar      string `json:"registrar"`
	NextProposalId uint32 `json:"next_proposal_id"`
	LastTick       uint64 `json:"last_tick"`
	MinLength      uint32 `json:"min_length"`
	MaxLength      uint32 `json:"max_length"`
	Duration       uint32 `json:"duration"`
	MaxPerTick     uint32 `json:"max_proposals_per_tick"`
}

type ParamsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ParamsQuerier) {
	q = &ParamsQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ParamsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	h := q.db.Header()
	res.Height = int64(h.Height)
	res.Value, _ = json.Marshal(&ParamsResult{
		ChainId:        h.ChainId,
		Registrar:      h.Registrar,
		NextProposalId: h.NextProposalId,
		LastTick:       h.LastTick,
		MinLength:      h.Params.MinLength,
		MaxLength:      h.Params.MaxLength,
		Duration:       h.Params.Duration,
		MaxPerTick:     h.Params.MaxProposalsPerTick,
	})
	return
}

type ExpiryQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewExpiryQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ExpiryQuerier) {
	q = &ExpiryQuerier{
		db:     db,
		logger: logger,
	}
	return
}

// Query takes the big-endian tick as data and returns the ids still
// scheduled to end at it.
func (q *ExpiryQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	tick, ok := decodeIndex(req.Data, 8)
	if !ok {
		res.Code = QueryCodeInvalidData
		return
	}
	ids, height, err := q.db.ExpiringAt(tick)
	if err != nil {
		q.logger.Error("query expiry fail", "tick", tick, "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	if ids == nil {
		ids = []uint32{}
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(ids)
	return
}
