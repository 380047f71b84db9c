package state

import (
	"encoding/json"
)

// Account tracks the replay nonce of a sender address.
type Account struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	type accountSt Account
	return json.Marshal((*accountSt)(a))
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	type accountSt Account
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	*a = Account(o)
	return
}

func (a *Account) Clone() *Account {
	n := *a
	return &n
}
