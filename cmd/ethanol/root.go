package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/purelabio/ethanol"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	config  string
	rpc     string
	verbose bool
}

// State shared by subcommands, filled in before any of them runs.
type app struct {
	flags  rootFlags
	conf   ethanol.Config
	logger zerolog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	app := &app{out: os.Stdout}

	cmd := &cobra.Command{
		Use:           "ethanol",
		Short:         "Ethereum node convenience tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd.ErrOrStderr())
		},
	}
	cmd.SetOut(app.out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.config, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&app.flags.rpc, "rpc", "", "node URL: http(s)://, ws(s)://, or ipc://<path>")
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newBlockNumberCmd(app),
		newBlockCmd(app),
		newBalanceCmd(app),
		newAddressCmd(app),
		newWaitCmd(app),
		newCompileCmd(app),
		newHeadsCmd(app),
		newGenCmd(app),
	)
	return cmd
}

func (self *app) init(stderr io.Writer) error {
	level := zerolog.InfoLevel
	if self.flags.verbose {
		level = zerolog.DebugLevel
	}
	self.logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	conf, err := ethanol.LoadConfig(self.flags.config)
	if err != nil {
		return err
	}
	if self.flags.rpc != "" {
		conf.Rpc = self.flags.rpc
	}
	self.conf = conf

	self.logger.Debug().Str("rpc", conf.Rpc).Str("config", self.flags.config).Msg("configured")
	return nil
}

func (self *app) chain(cmd *cobra.Command) (*ethanol.Blockchain, error) {
	if self.conf.Rpc == "" {
		return nil, errors.New(`no node URL: set "--rpc", "rpc" in the config, or ETHANOL_RPC`)
	}
	opts := append(self.conf.Options(), ethanol.WithLogger(self.logger))
	return ethanol.At(cmd.Context(), self.conf.Rpc, opts...)
}
