package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/purelabio/ethanol"
	"github.com/spf13/cobra"
)

func newBlockNumberCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block-number",
		Short: "Print the number of the latest block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, err := app.chain(cmd)
			if err != nil {
				return err
			}
			defer chain.Close()

			num, err := chain.BlockNumber(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), num)
			return nil
		},
	}
}

func newBlockCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block <number|latest|pending|earliest>",
		Short: "Print a block with its transactions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := parseBlockNumber(args[0])
			if err != nil {
				return err
			}

			chain, err := app.chain(cmd)
			if err != nil {
				return err
			}
			defer chain.Close()

			block, err := chain.Block(cmd.Context(), num)
			if err != nil {
				return err
			}
			return printJson(cmd.OutOrStdout(), block)
		},
	}
}

func parseBlockNumber(input string) (ethanol.BlockNumber, error) {
	switch input {
	case ethanol.BlockNumberLatest, ethanol.BlockNumberPending, ethanol.BlockNumberEarliest:
		return input, nil
	}
	num, err := strconv.ParseUint(input, 0, 64)
	if err != nil {
		return nil, errors.Errorf("invalid block number %q", input)
	}
	return num, nil
}

func newBalanceCmd(app *app) *cobra.Command {
	var eth bool

	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the balance of an address in wei",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := ethanol.ParseAddress(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid address %q", args[0])
			}

			chain, err := app.chain(cmd)
			if err != nil {
				return err
			}
			defer chain.Close()

			wei, err := chain.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			if eth {
				fmt.Fprintln(cmd.OutOrStdout(), ethanol.WeiToEth(wei))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), wei)
			return nil
		},
	}
	cmd.Flags().BoolVar(&eth, "eth", false, "print in ether, approximately")
	return cmd
}

func newAddressCmd(app *app) *cobra.Command {
	var index uint32
	var showKey bool

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address derived from the configured mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic := ethanol.Mnemonic(app.conf.Mnemonic)
			if mnemonic == "" {
				mnemonic = ethanol.DefaultMnemonic
			}
			if !cmd.Flags().Changed("index") {
				index = app.conf.Index
			}

			key, err := mnemonic.DeriveKey(index)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.Address().Checksum())
			if showKey {
				fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&index, "index", 0, "account index, m/44'/60'/0'/0/<index>")
	cmd.Flags().BoolVar(&showKey, "show-key", false, "also print the private key")
	return cmd
}

func newWaitCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait <tx hash>",
		Short: "Wait until a transaction is mined and report its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := ethanol.ParseHash(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid transaction hash %q", args[0])
			}

			if cmd.Flags().Changed("timeout") {
				app.conf.Timeout = timeout
			}
			chain, err := app.chain(cmd)
			if err != nil {
				return err
			}
			defer chain.Close()

			app.logger.Info().Stringer("hash", hash).Msg("waiting")
			receipt, err := chain.Confirm(cmd.Context(), hash)
			if err != nil {
				var failed ethanol.TxFailedError
				if errors.As(err, &failed) {
					printJson(cmd.OutOrStdout(), failed.Receipt)
				}
				return err
			}
			return printJson(cmd.OutOrStdout(), receipt)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long; 0 waits forever")
	return cmd
}

func newCompileCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <path[.sol]>",
		Short: "Compile a contract and print its ABI and bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compiler := app.conf.Compiler()
			compiler.Logger = app.logger

			def, _, err := compiler.CompileDef(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJson(cmd.OutOrStdout(), struct {
				Abi json.RawMessage  `json:"abi"`
				Bin ethanol.HexBytes `json:"bin"`
			}{json.RawMessage(def.AbiJson), def.Code})
		},
	}
}

func newHeadsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "heads",
		Short: "Print new block headers as they arrive (ws or ipc only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, err := app.chain(cmd)
			if err != nil {
				return err
			}
			defer chain.Close()

			heads := make(chan ethanol.BlockHead, 16)
			done := make(chan error, 1)
			go func() {
				done <- ethanol.SubscribeToBlockHeads(cmd.Context(), chain.Trans(), heads)
			}()

			for head := range heads {
				fmt.Fprintf(cmd.OutOrStdout(), "%v %v\n", head.Number.Big(), head.Hash)
			}

			err = <-done
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func printJson(out io.Writer, val interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(val))
}
