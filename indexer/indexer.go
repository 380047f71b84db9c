package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/quad-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// BlockSource is the part of the CometBFT RPC client the indexer reads.
type BlockSource interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

func DialChain(chainUrl string) (*comethttp.HTTP, error) {
	return comethttp.New(chainUrl, "/websocket")
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Height        int64
	db            *gorm.DB
	src           BlockSource
	eventHandlers map[string]eventHandler
	interval      time.Duration
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, src BlockSource) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &Vote{}, &Identity{}, &Height{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		db.Close()
		return nil, err
	}

	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		db:       db,
		src:      src,
		interval: time.Second,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalSubmittedType: c.handleEventProposalSubmitted,
		types.EventVoteSubmittedType:     c.handleEventVoteSubmitted,
		types.EventProposalWinType:       c.handleEventProposalOutcome,
		types.EventProposalLoseType:      c.handleEventProposalOutcome,
		types.EventIdentitySetType:       c.handleEventIdentity,
		types.EventIdentityClearedType:   c.handleEventIdentity,
		types.EventIdentityKilledType:    c.handleEventIdentity,
		types.EventIdentityForcedType:    c.handleEventIdentity,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(db *gorm.DB, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(db, event, height)
	}
	return nil
}

func (c *ChainIndexer) handleEventProposalSubmitted(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalSubmitted(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	proposal := Proposal{
		ProposalId:   ev.Proposal,
		Proposer:     ev.Proposer,
		Text:         ev.Text,
		SubmitHeight: uint64(height),
		EndTick:      ev.EndTick,
		Status:       uint64(types.ProposalStatusOpen),
		Outcome:      types.OutcomeNone.String(),
	}
	return db.Create(&proposal).Error
}

func (c *ChainIndexer) handleEventVoteSubmitted(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVoteSubmitted(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	vote := Vote{
		ProposalId: ev.Proposal,
		Voter:      ev.Voter,
		Yes:        ev.Choice == types.ChoiceYes,
		Height:     uint64(height),
	}
	if err := db.Create(&vote).Error; err != nil {
		return err
	}
	column := "no_count"
	if vote.Yes {
		column = "yes_count"
	}
	return db.Model(&Proposal{}).Where("proposal_id = ?", ev.Proposal).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}

func (c *ChainIndexer) handleEventProposalOutcome(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalOutcome(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	return db.Model(&Proposal{}).Where("proposal_id = ?", ev.Proposal).Updates(map[string]any{
		"status":         uint64(types.ProposalStatusResolved),
		"outcome":        ev.Outcome.String(),
		"yes_count":      ev.YesCount,
		"no_count":       ev.NoCount,
		"resolve_height": uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventIdentity(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventIdentity(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	var id Identity
	if err := db.Where("address = ?", ev.Address).First(&id).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	id.Address = ev.Address
	id.Height = uint64(height)
	id.LastEvent = ev.Type
	switch ev.Type {
	case types.EventIdentitySetType, types.EventIdentityForcedType:
		id.Active = true
		id.Hash = ev.Hash.Hex()
	default:
		id.Active = false
		id.Hash = ""
	}
	return db.Save(&id).Error
}

// indexBlock stores the events of one block together with the new height.
func (c *ChainIndexer) indexBlock(res *coretypes.ResultBlockResults) (err error) {
	tx := c.db.Begin()
	if err = tx.Error; err != nil {
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	for _, r := range res.TxsResults {
		if r.Code != 0 {
			continue
		}
		for _, event := range r.Events {
			if err = c.handleEvent(tx, event, res.Height); err != nil {
				return
			}
		}
	}
	for _, event := range res.FinalizeBlockEvents {
		if err = c.handleEvent(tx, event, res.Height); err != nil {
			return
		}
	}
	if err = tx.Save(&Height{Id: 1, Height: uint64(res.Height)}).Error; err != nil {
		return
	}
	err = tx.Commit().Error
	return
}

// Sync indexes every block up to the latest height reported by the chain.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.src.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if err := ctx.Err(); err != nil {
			return err
		}
		height := c.Height
		res, err := c.src.BlockResults(ctx, &height)
		if err != nil {
			return err
		}
		if err := c.indexBlock(res); err != nil {
			c.logger.Error("index block fail", "height", height, "err", err)
			return err
		}
		c.logger.Debug("indexed block", "height", height)
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getProposals(proposer string, status uint64, page int, pageSize int) ([]Proposal, uint64, error) {
	q := c.db.Model(&Proposal{})
	if proposer != "" {
		q = q.Where("proposer = ?", proposer)
	}
	if status != 0 {
		q = q.Where("status = ?", status)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := q.Order("proposal_id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint32) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("proposal_id = ?", proposalId).First(&proposal).Error
	return proposal, err
}

func (c *ChainIndexer) getVotes(proposalId *uint32, voter string, page int, pageSize int) ([]Vote, uint64, error) {
	q := c.db.Model(&Vote{})
	if proposalId != nil {
		q = q.Where("proposal_id = ?", *proposalId)
	}
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var votes []Vote
	err := q.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getIdentities(address string, activeOnly bool, page int, pageSize int) ([]Identity, uint64, error) {
	q := c.db.Model(&Identity{})
	if address != "" {
		q = q.Where("address = ?", address)
	}
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ids []Identity
	err := q.Order("address asc").Offset(page * pageSize).Limit(pageSize).Find(&ids).Error
	if err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}
