package main

import (
	"github.com/calehh/quad-app/tx"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	txArguments
	Text string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a proposal",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&proposeArgs.txArguments, tx.QuadTxTypeProposal, &tx.ProposalTx{
			Text: []byte(proposeArgs.Text),
		})
	},
}

func init() {
	txFlags(proposeCmd, &proposeArgs.txArguments)
	proposeCmd.Flags().StringVarP(&proposeArgs.Text, "text", "t", "", "proposal text")
	_ = proposeCmd.MarkFlagRequired("text")
}
