package ethanol

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Strongly-typed version of the "eth_accounts" RPC method.
func EthAccounts(ctx context.Context, trans Trans) ([]Address, error) {
	var out []Address
	err := trans.Call(ctx, &out, "eth_accounts")
	return out, errors.Wrap(err, `error in "eth_accounts"`)
}

// Strongly-typed version of the "eth_getBalance" RPC method.
func EthGetBalance(ctx context.Context, trans Trans, addr Address, num BlockNumber) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_getBalance", addr, encodeBlockNumber(num))
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_getBalance"`)
}

// Strongly-typed version of the "eth_gasPrice" RPC method.
func EthGasPrice(ctx context.Context, trans Trans) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_gasPrice")
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_gasPrice"`)
}

/*
Strongly-typed version of the "eth_estimateGas" RPC method.

Note that estimating gas is a somewhat slow operation; the remote node will
attempt to execute the transaction against the current block, running EVM code
if required.
*/
func EthEstimateGas(ctx context.Context, trans Trans, msg TxMsg) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_estimateGas", msg)
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_estimateGas"`)
}

/*
Strongly-typed version of the "eth_chainId" RPC method. Falls back on
"net_version" for nodes that predate EIP-695.
*/
func EthChainId(ctx context.Context, trans Trans) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_chainId")
	if err == nil {
		return (*big.Int)(&out), nil
	}

	var version string
	if trans.Call(ctx, &version, "net_version") != nil {
		return nil, errors.Wrap(err, `error in "eth_chainId"`)
	}
	id, parseErr := strconv.ParseUint(version, 10, 64)
	if parseErr != nil {
		return nil, errors.Wrapf(parseErr, `unexpected "net_version" %q`, version)
	}
	return new(big.Int).SetUint64(id), nil
}

// Strongly-typed version of the "eth_getTransactionCount" RPC method.
func EthGetTransactionCount(ctx context.Context, trans Trans, addr Address, num BlockNumber) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_getTransactionCount", addr, encodeBlockNumber(num))
	return uint64(out), errors.Wrap(err, `error in "eth_getTransactionCount"`)
}

// Strongly-typed version of the "eth_blockNumber" RPC method.
func EthBlockNumber(ctx context.Context, trans Trans) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_blockNumber")
	return uint64(out), errors.Wrap(err, `error in "eth_blockNumber"`)
}

/*
Strongly-typed version of the "eth_getBlockByNumber" RPC method, with full
transaction objects. The input must be a number or one of the magic strings;
see the "BlockNumber" constants. Returns an error if the block doesn't exist.
*/
func EthGetBlockByNumber(ctx context.Context, trans Trans, num BlockNumber) (Block, error) {
	var out *Block
	err := trans.Call(ctx, &out, "eth_getBlockByNumber", encodeBlockNumber(num), true)
	if err != nil {
		return Block{}, errors.Wrap(err, `error in "eth_getBlockByNumber"`)
	}
	if out == nil {
		return Block{}, errors.Errorf(`block %v not found`, num)
	}
	return *out, nil
}

// Strongly-typed version of the "eth_getBlockByHash" RPC method.
func EthGetBlockByHash(ctx context.Context, trans Trans, hash Hash) (BlockHead, error) {
	var out *BlockHead
	err := trans.Call(ctx, &out, "eth_getBlockByHash", hash, false)
	if err != nil {
		return BlockHead{}, errors.Wrap(err, `error in "eth_getBlockByHash"`)
	}
	if out == nil {
		return BlockHead{}, errors.Errorf(`block %v not found`, hash)
	}
	return *out, nil
}

/*
Variant of "EthGetBlockByHash" with caching. The "hash ↔︎ block" association is
unique and immutable, while the "blockNumber ↔︎ block" association may change
when switching between forks, so only lookups by hash are cached. Concurrent
misses for the same hash may both hit the node; the result is the same.
*/
func EthGetBlockByHashCached(ctx context.Context, trans Trans, cache *lru.Cache[Hash, BlockHead], hash Hash) (BlockHead, error) {
	if block, ok := cache.Get(hash); ok {
		return block, nil
	}

	block, err := EthGetBlockByHash(ctx, trans, hash)
	if err != nil {
		return block, err
	}
	cache.Add(hash, block)
	return block, nil
}

/*
Asks the remote node to estimate the gas required for the transaction, adding
"GasPadding" to the estimate. Fills in the gas price if missing.
*/
func AddEstimates(ctx context.Context, trans Trans, msg TxMsg) (TxMsg, error) {
	if msg.GasPrice == nil {
		gasPrice, err := EthGasPrice(ctx, trans)
		if err != nil {
			return msg, err
		}
		msg.GasPrice = (*HexInt)(gasPrice)
	}

	if msg.GasLimit == nil {
		gasLimit, err := EthEstimateGas(ctx, trans, msg)
		if err != nil {
			return msg, err
		}
		msg.GasLimit = (*HexInt)(gasLimit.Add(gasLimit, big.NewInt(GasPadding)))
	}

	return msg, nil
}

/*
Strongly-typed version of the "eth_sendTransaction" RPC method. The node signs
the transaction with one of its own accounts, so "msg.From" must be unlocked
on the node.
*/
func EthSendTx(ctx context.Context, trans Trans, msg TxMsg) (Hash, error) {
	var hash Hash
	err := trans.Call(ctx, &hash, "eth_sendTransaction", msg)
	return hash, errors.Wrap(err, `error in "eth_sendTransaction"`)
}

// Strongly-typed version of the "eth_sendRawTransaction" RPC method.
func EthSendRawTx(ctx context.Context, trans Trans, raw []byte) (Hash, error) {
	var hash Hash
	err := trans.Call(ctx, &hash, "eth_sendRawTransaction", HexBytes(raw))
	return hash, errors.Wrap(err, `error in "eth_sendRawTransaction"`)
}

/*
Strongly-typed version of the "eth_getTransactionByHash" RPC method. Returns
nil without error when the node doesn't know the transaction.
*/
func EthGetTxByHash(ctx context.Context, trans Trans, hash Hash) (*Transaction, error) {
	var out *Transaction
	err := trans.Call(ctx, &out, "eth_getTransactionByHash", hash)
	return out, errors.Wrap(err, `error in "eth_getTransactionByHash"`)
}

/*
Strongly-typed version of the "eth_getTransactionReceipt" RPC method. Returns
nil without error while the transaction isn't mined.
*/
func EthGetTxReceipt(ctx context.Context, trans Trans, hash Hash) (*TxReceipt, error) {
	var out *TxReceipt
	err := trans.Call(ctx, &out, "eth_getTransactionReceipt", hash)
	return out, errors.Wrap(err, `error in "eth_getTransactionReceipt"`)
}

// Strongly-typed version of the "eth_getLogs" RPC method.
func EthGetLogs(ctx context.Context, trans Trans, filter LogFilter) ([]LogEntry, error) {
	filter.FromBlock = encodeBlockNumber(filter.FromBlock)
	filter.ToBlock = encodeBlockNumber(filter.ToBlock)

	var out []LogEntry
	err := trans.Call(ctx, &out, "eth_getLogs", filter)
	return out, errors.Wrap(err, `error in "eth_getLogs"`)
}

/*
Subscribes to future blocks, sending them over the provided channel. Returns an
error when the context is canceled, or when the connection is interrupted. Does
NOT automatically resubscribe. Requires a websocket or IPC transport.
*/
func SubscribeToBlockHeads(ctx context.Context, trans Trans, out chan<- BlockHead) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(out)
	}()

	inputs := make(chan []byte, cap(out))
	errChan := gogo(func() error {
		return trans.Subscribe(ctx, inputs, "newHeads")
	})

	for input := range inputs {
		var value BlockHead
		err := json.Unmarshal(input, &value)
		if err != nil {
			return errors.WithStack(err)
		}
		out <- value
	}
	return <-errChan
}

/*
Retrieves the address of the contract created by the given transaction. Returns
an error if the transaction isn't mined or isn't a contract deployment.
*/
func EthContractAddress(ctx context.Context, trans Trans, hash Hash) (Address, error) {
	receipt, err := EthGetTxReceipt(ctx, trans, hash)
	if err != nil {
		return ZeroAddress, errors.Wrapf(err, `failed to retrieve contract address for transaction %v`, hash)
	}
	if receipt == nil {
		return ZeroAddress, errors.Errorf(`transaction %v is not mined`, hash)
	}
	if receipt.ContractAddress == ZeroAddress {
		return ZeroAddress, errors.Errorf(`no contract address found at transaction %v`, hash)
	}
	return receipt.ContractAddress, nil
}

/*
Strongly-typed version of the "eth_call" RPC method.

Invokes a "view" or "pure" contract method without creating a transaction. The
caller must ABI-pack "TxMsg.Data" and ABI-unpack the output.
*/
func EthCall(ctx context.Context, trans Trans, msg TxMsg, blockNumber BlockNumber) ([]byte, error) {
	var out HexBytes
	err := trans.Call(ctx, &out, "eth_call", msg, encodeBlockNumber(blockNumber))
	return out, errors.Wrap(err, `error in "eth_call"`)
}

// Same as "EthCall", but always uses the latest block number.
func EthCallLatest(ctx context.Context, trans Trans, msg TxMsg) ([]byte, error) {
	return EthCall(ctx, trans, msg, BlockNumberLatest)
}
