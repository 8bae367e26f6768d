/*
Command-line companion of the "ethanol" library: inspect a chain, derive
account addresses, wait for transactions, and compile Solidity contracts.

Example usage:

	ethanol --rpc http://localhost:8545 block-number
	ethanol address --index 3
	ethanol wait 0x98e6a7d3379a5f0184f234a89589657b4d161bf6c6764ccb74105cbb474bd598
	ethanol gen --out gen_contracts.go sol/Token.sol:Token

Settings come from "--config", then "ETHANOL_*" environment variables, then
flags.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ethanol: %v\n", err)
		stop()
		os.Exit(1)
	}
}
