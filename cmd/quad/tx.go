package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/quad-app/crypto"
	"github.com/calehh/quad-app/state"
	"github.com/calehh/quad-app/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url    string
	Skey   string
	Nonce  int64
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	skeyFlag(cmd, &args.Skey)
	cmd.Flags().Int64VarP(&args.Nonce, "nonce", "n", -1, "account nonce, queried from the node if negative")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of sending it")
}

func queryNonce(ctx context.Context, cli *http.HTTP, address string) (uint64, error) {
	res, err := cli.ABCIQuery(ctx, "/nonces/", []byte(address))
	if err != nil {
		return 0, err
	}
	if res.Response.Code != 0 {
		return 0, fmt.Errorf("query nonce code %v", res.Response.Code)
	}
	var act state.Account
	if err = act.UnmarshalJSON(res.Response.Value); err != nil {
		return 0, err
	}
	return act.Nonce, nil
}

// sendTx signs body with the key of args and broadcasts it.
func sendTx(args *txArguments, tp tx.QuadTxType, body any) error {
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client err: %w", err)
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis err: %w", err)
	}
	chainId := gres.Genesis.ChainID

	var nonce uint64
	if args.Nonce >= 0 {
		nonce = uint64(args.Nonce)
	} else {
		nonce, err = queryNonce(ctx, cli, pv.Address())
		if err != nil {
			return err
		}
	}
	btx := &tx.QuadTx{
		Version: tx.QuadTxVersion1,
		Type:    tp,
		Nonce:   nonce,
		Tx:      body,
	}
	if err = pv.SignTx(btx, chainId); err != nil {
		return err
	}
	println("address:", pv.Address())
	dat, err := tx.MarshalQuadTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Println(hex.EncodeToString(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx err: %w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Printf("%v\n", string(out))
	if res.Code != 0 {
		return errors.New(res.Log)
	}
	return nil
}
