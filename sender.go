package ethanol

import (
	"context"
	"math/big"
	"sync"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

/*
Submits transactions on behalf of one account. Implementations fill in
whatever the message leaves empty and return the hash of the submitted
transaction. They don't wait for mining; see "Poller".
*/
type Sender interface {
	Address() Address
	Send(ctx context.Context, trans Trans, msg TxMsg) (Hash, error)
}

/*
Account managed by the node, typically the first account of a "geth --dev"
node reachable over IPC. The node signs with "eth_sendTransaction".
*/
type NodeSender struct {
	From Address
}

func (self NodeSender) Address() Address { return self.From }

func (self NodeSender) Send(ctx context.Context, trans Trans, msg TxMsg) (Hash, error) {
	msg.From = self.From
	msg, err := AddEstimates(ctx, trans, msg)
	if err != nil {
		return ZeroHash, err
	}
	return EthSendTx(ctx, trans, msg)
}

/*
Account whose private key is held locally. Transactions are built as EIP-155
legacy transactions, signed in-process, and submitted with
"eth_sendRawTransaction"; the node never sees the key.

Sends are serialized per sender so that concurrent callers don't reuse the
same pending nonce.
*/
type KeySender struct {
	key *PrivateKey

	lock    sync.Mutex
	chainId *big.Int
}

func NewKeySender(key *PrivateKey) *KeySender {
	return &KeySender{key: key}
}

func (self *KeySender) Address() Address { return self.key.Address() }

func (self *KeySender) Send(ctx context.Context, trans Trans, msg TxMsg) (Hash, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	msg.From = self.Address()

	if msg.Nonce == nil {
		nonce, err := EthGetTransactionCount(ctx, trans, msg.From, BlockNumberPending)
		if err != nil {
			return ZeroHash, err
		}
		msg.Nonce = (*HexUint64)(&nonce)
	}

	msg, err := AddEstimates(ctx, trans, msg)
	if err != nil {
		return ZeroHash, err
	}

	chainId, err := self.chainIdFor(ctx, trans)
	if err != nil {
		return ZeroHash, err
	}

	tx, err := types.SignTx(legacyTx(msg), types.NewEIP155Signer(chainId), self.key.ECDSA())
	if err != nil {
		return ZeroHash, errors.Wrap(err, "failed to sign transaction")
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return ZeroHash, errors.WithStack(err)
	}
	return EthSendRawTx(ctx, trans, raw)
}

// Must be called under lock. The chain id doesn't change for a given node.
func (self *KeySender) chainIdFor(ctx context.Context, trans Trans) (*big.Int, error) {
	if self.chainId != nil {
		return self.chainId, nil
	}
	chainId, err := EthChainId(ctx, trans)
	if err != nil {
		return nil, err
	}
	self.chainId = chainId
	return chainId, nil
}

// Expects a message with nonce, gas price and gas limit filled in.
func legacyTx(msg TxMsg) *types.Transaction {
	var to *gethcommon.Address
	if msg.To != ZeroAddress {
		addr := msg.To.Common()
		to = &addr
	}

	value := new(big.Int)
	if msg.Value != nil {
		value.Set(msg.Value.Big())
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    uint64(*msg.Nonce),
		GasPrice: msg.GasPrice.Big(),
		Gas:      msg.GasLimit.Big().Uint64(),
		To:       to,
		Value:    value,
		Data:     msg.Data,
	})
}
