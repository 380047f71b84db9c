package main

import (
	"fmt"

	"github.com/calehh/quad-app/tx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage participant identities",
	Long:  ``,
}

type identityArguments struct {
	txArguments
	Hash string
}

var (
	setIdentityArgs   identityArguments
	clearIdentityArgs txArguments
	killIdentityArgs  txArguments
	forceIdentityArgs identityArguments
)

func parseIdentityHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("identity hash must be %v bytes", common.HashLength)
	}
	return common.BytesToHash(b), nil
}

var setIdentityCmd = &cobra.Command{
	Use:   "set",
	Short: "Register or update the identity of the signer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseIdentityHash(setIdentityArgs.Hash)
		if err != nil {
			return err
		}
		return sendTx(&setIdentityArgs.txArguments, tx.QuadTxTypeSetIdentity, &tx.SetIdentityTx{Hash: h})
	},
}

var clearIdentityCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the identity of the signer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&clearIdentityArgs, tx.QuadTxTypeClearIdentity, &tx.ClearIdentityTx{})
	},
}

var killIdentityCmd = &cobra.Command{
	Use:   "kill <address>",
	Short: "Remove the identity of an address, registrar only",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&killIdentityArgs, tx.QuadTxTypeKillIdentity, &tx.KillIdentityTx{Target: args[0]})
	},
}

var forceIdentityCmd = &cobra.Command{
	Use:   "force <address>",
	Short: "Set the identity of an address, registrar only",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseIdentityHash(forceIdentityArgs.Hash)
		if err != nil {
			return err
		}
		return sendTx(&forceIdentityArgs.txArguments, tx.QuadTxTypeForceIdentity, &tx.ForceIdentityTx{Target: args[0], Hash: h})
	},
}

func init() {
	txFlags(setIdentityCmd, &setIdentityArgs.txArguments)
	setIdentityCmd.Flags().StringVar(&setIdentityArgs.Hash, "hash", "", "identity hash, hex encoded")
	txFlags(clearIdentityCmd, &clearIdentityArgs)
	txFlags(killIdentityCmd, &killIdentityArgs)
	txFlags(forceIdentityCmd, &forceIdentityArgs.txArguments)
	forceIdentityCmd.Flags().StringVar(&forceIdentityArgs.Hash, "hash", "", "identity hash, hex encoded")

	identityCmd.AddCommand(setIdentityCmd, clearIdentityCmd, killIdentityCmd, forceIdentityCmd)
}
