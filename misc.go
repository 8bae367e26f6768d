package ethanol

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Conversion ratios.
const (
	Wei   = 1
	Ether = 1e18 // Measured in wei
)

// "Magic" words understood by RPC methods that expect a block number.
const (
	BlockNumberEarliest = "earliest"
	BlockNumberLatest   = "latest"
	BlockNumberPending  = "pending"
)

/*
Added to every gas estimate when this package fills in a gas limit. Receipts
from chains without the "status" field are classified by comparing the gas used
against the gas limit (see "ClassifyReceipt"). Without padding, a transaction
that consumes exactly its estimate would look like a reversion.
*/
const GasPadding = 21000

// Zero-initialized arrays for equality comparisons.
var (
	ZeroAddress Address
	ZeroHash    Hash
	ZeroBloom   Bloom
)

var (
	// Default reconnect interval of long-lived RPC transports such as WsTrans.
	defaultReconnectInterval = time.Second

	etherBig = big.NewFloat(Ether)
)

/*
Converts ethers to wei. Truncates leftover fractional digits. Floats should
not be used for financial calculations; this is for display and user input.
*/
func EthToWei(eth float64) *big.Int {
	num := big.NewFloat(eth)
	num.Mul(num, etherBig)
	out, _ := num.Int(nil)
	return out
}

// Converts wei to ethers. For display purposes only.
func WeiToEth(wei *big.Int) float64 {
	num := new(big.Float).SetInt(wei)
	num.Quo(num, etherBig)
	out, _ := num.Float64()
	return out
}

/*
Converts a block number into something the RPC layer can encode: plain integers
become hex, strings pass through unchanged.
*/
func encodeBlockNumber(num BlockNumber) BlockNumber {
	switch num := num.(type) {
	case uint64:
		return HexUint64(num)
	case int:
		return HexUint64(num)
	case *big.Int:
		return (*HexInt)(num)
	case nil:
		return BlockNumberLatest
	}
	return num
}

// Launches a goroutine, returning a channel that will close on completion,
// transmitting its error or panic, if any.
func gogo(fun func() error) chan error {
	out := make(chan error, 1)

	go func() {
		defer func() {
			if val := recover(); val != nil {
				err, ok := val.(error)
				if !ok {
					err = errors.Errorf("%v", val)
				}
				select {
				case out <- err:
				default:
				}
			}
			close(out)
		}()

		err := fun()
		if err != nil {
			out <- err
		}
	}()

	return out
}

// Sleeps for the given duration or until the context is done, whichever is
// first. Returns the context error in the latter case.
func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
