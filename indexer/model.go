package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id            uint64 `gorm:"primary_key" json:"-"`
	ProposalId    uint32 `gorm:"unique_index" json:"proposal_id"`
	Proposer      string `gorm:"index" json:"proposer"`
	Text          []byte `json:"text"`
	SubmitHeight  uint64 `json:"submit_height"`
	EndTick       uint64 `json:"end_tick"`
	YesCount      uint32 `json:"yes_count"`
	NoCount       uint32 `json:"no_count"`
	Status        uint64 `gorm:"index" json:"status"`
	Outcome       string `json:"outcome"`
	ResolveHeight uint64 `json:"resolve_height"`
}

type Vote struct {
	Id         uint64 `gorm:"primary_key" json:"id"`
	ProposalId uint32 `gorm:"index" json:"proposal_id"`
	Voter      string `gorm:"index" json:"voter"`
	Yes        bool   `json:"yes"`
	Height     uint64 `json:"height"`
}

type Identity struct {
	Id      uint64 `gorm:"primary_key" json:"-"`
	Address string `gorm:"unique_index" json:"address"`
	Hash    string `json:"hash"`
	Active  bool   `json:"active"`
	Height  uint64 `json:"height"`
	// LastEvent is the event type that last changed the identity.
	LastEvent string `json:"last_event"`
}
