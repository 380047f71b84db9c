package main

import (
	"strconv"

	"github.com/calehh/quad-app/tx"
	"github.com/calehh/quad-app/types"
	"github.com/spf13/cobra"
)

var voteArgs txArguments

var voteCmd = &cobra.Command{
	Use:   "vote <proposal> <yes|no>",
	Short: "Vote on an open proposal",
	Long:  ``,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		choice, err := types.ParseChoice(args[1])
		if err != nil {
			return err
		}
		return sendTx(&voteArgs, tx.QuadTxTypeVote, &tx.VoteTx{
			Proposal: uint32(id),
			Choice:   choice,
		})
	},
}

func init() {
	txFlags(voteCmd, &voteArgs)
}
