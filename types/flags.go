package types

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
	FlagRegistrar = "registrar"
	FlagIdentity  = "identity"
)
