package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/quad-app/app"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

var queryUrl string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the committed state of a node",
	Long:  ``,
}

// encodeIndex is the big-endian form of v without leading zero bytes.
func encodeIndex(v uint64) []byte {
	b := []byte{byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

func abciQuery(path string, data []byte) error {
	cli, err := http.New(queryUrl, "/websocket")
	if err != nil {
		return fmt.Errorf("new client err: %w", err)
	}
	res, err := cli.ABCIQuery(context.Background(), path, data)
	if err != nil {
		return err
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %v code %v", path, res.Response.Code)
	}
	var out bytes.Buffer
	if err = json.Indent(&out, res.Response.Value, "", "  "); err != nil {
		return err
	}
	fmt.Printf("height: %v\n%s\n", res.Response.Height, out.String())
	return nil
}

var queryProposalCmd = &cobra.Command{
	Use:   "proposal <id>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		return abciQuery("/proposals/", encodeIndex(id))
	},
}

var queryVoteCmd = &cobra.Command{
	Use:   "vote <id> <address>",
	Short: "Show whether an address voted on a proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		dat, err := json.Marshal(&app.VoteQuery{Proposal: uint32(id), Voter: args[1]})
		if err != nil {
			return err
		}
		return abciQuery("/votes/", dat)
	},
}

var queryIdentityCmd = &cobra.Command{
	Use:   "identity <address>",
	Short: "Show the identity of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return abciQuery("/identities/", []byte(args[0]))
	},
}

var queryNonceCmd = &cobra.Command{
	Use:   "nonce <address>",
	Short: "Show the next transaction nonce of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return abciQuery("/nonces/", []byte(args[0]))
	},
}

var queryParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the chain parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return abciQuery("/params/", nil)
	},
}

var queryExpiryCmd = &cobra.Command{
	Use:   "expiry <tick>",
	Short: "Show the proposals ending at a tick",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tick, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return abciQuery("/expiry/", encodeIndex(tick))
	},
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUrl, "url", "u", "http://127.0.0.1:26657", "quad node rpc url")
	queryCmd.AddCommand(queryProposalCmd, queryVoteCmd, queryIdentityCmd, queryNonceCmd, queryParamsCmd, queryExpiryCmd)
}
