package ethanol

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Records raw transactions and hands out consecutive pending nonces.
func signingNode(chainId int64) *fakeTrans {
	var lock sync.Mutex
	var sent uint64

	trans := newFakeTrans().
		reply("eth_chainId", NewHexInt(chainId)).
		reply("eth_gasPrice", NewHexInt(1000000000)).
		reply("eth_estimateGas", NewHexInt(21000))

	trans.on("eth_getTransactionCount", func([]interface{}) (interface{}, error) {
		lock.Lock()
		defer lock.Unlock()
		return HexUint64(sent), nil
	})
	trans.on("eth_sendRawTransaction", func(params []interface{}) (interface{}, error) {
		lock.Lock()
		defer lock.Unlock()
		sent++

		var tx types.Transaction
		err := tx.UnmarshalBinary(params[0].(HexBytes))
		if err != nil {
			return nil, err
		}
		return Hash(tx.Hash()), nil
	})
	return trans
}

func decodeRawTx(t *testing.T, trans *fakeTrans) *types.Transaction {
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(trans.lastParams("eth_sendRawTransaction")[0].(HexBytes)))
	return &tx
}

func TestKeySenderSignsLocally(t *testing.T) {
	key, err := Mnemonic(DefaultMnemonic).DeriveKey(0)
	require.NoError(t, err)

	trans := signingNode(1337)
	sender := NewKeySender(key)
	to := testAddress(5)

	hash, err := sender.Send(context.Background(), trans, TxMsg{To: to, Value: NewHexInt(42)})
	require.NoError(t, err)

	tx := decodeRawTx(t, trans)
	require.Equal(t, Hash(tx.Hash()), hash)
	require.Equal(t, uint64(0), tx.Nonce())
	require.Equal(t, uint64(21000+GasPadding), tx.Gas())
	require.Equal(t, int64(42), tx.Value().Int64())
	require.Equal(t, int64(1337), tx.ChainId().Int64())
	require.Equal(t, to.Common(), *tx.To())

	from, err := types.Sender(types.NewEIP155Signer(tx.ChainId()), tx)
	require.NoError(t, err)
	require.Equal(t, key.Address().Common(), from)

	require.Equal(t, 0, trans.count("eth_sendTransaction"))
}

func TestKeySenderDeploymentHasNoReceiver(t *testing.T) {
	key, err := Mnemonic(DefaultMnemonic).DeriveKey(0)
	require.NoError(t, err)

	trans := signingNode(1337)
	_, err = NewKeySender(key).Send(context.Background(), trans, TxMsg{Data: HexBytes{0x60, 0x80}})
	require.NoError(t, err)

	tx := decodeRawTx(t, trans)
	require.Nil(t, tx.To())
	require.Equal(t, []byte{0x60, 0x80}, tx.Data())
}

func TestKeySenderKeepsExplicitFields(t *testing.T) {
	key, err := Mnemonic(DefaultMnemonic).DeriveKey(0)
	require.NoError(t, err)

	trans := signingNode(1337)
	nonce := HexUint64(9)
	_, err = NewKeySender(key).Send(context.Background(), trans, TxMsg{
		To:       testAddress(5),
		GasLimit: NewHexInt(100000),
		GasPrice: NewHexInt(7),
		Nonce:    &nonce,
	})
	require.NoError(t, err)

	tx := decodeRawTx(t, trans)
	require.Equal(t, uint64(9), tx.Nonce())
	require.Equal(t, uint64(100000), tx.Gas())
	require.Equal(t, int64(7), tx.GasPrice().Int64())
	require.Equal(t, 0, trans.count("eth_getTransactionCount"))
	require.Equal(t, 0, trans.count("eth_estimateGas"))
}

func TestKeySenderSerializesNonces(t *testing.T) {
	key, err := Mnemonic(DefaultMnemonic).DeriveKey(1)
	require.NoError(t, err)

	trans := signingNode(1337)
	sender := NewKeySender(key)

	const count = 8
	var wg sync.WaitGroup
	hashes := make(chan Hash, count)
	errs := make(chan error, count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hash, err := sender.Send(context.Background(), trans, TxMsg{To: testAddress(5)})
			errs <- err
			hashes <- hash
		}()
	}
	wg.Wait()
	close(hashes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	unique := map[Hash]bool{}
	for hash := range hashes {
		unique[hash] = true
	}
	require.Len(t, unique, count)
	require.Equal(t, 1, trans.count("eth_chainId"))
}

func TestKeySenderChainIdFallback(t *testing.T) {
	key, err := Mnemonic(DefaultMnemonic).DeriveKey(0)
	require.NoError(t, err)

	trans := signingNode(0)
	trans.on("eth_chainId", func([]interface{}) (interface{}, error) {
		return nil, RpcError{Code: -32601, Message: "method not found"}
	})
	trans.reply("net_version", "42")

	_, err = NewKeySender(key).Send(context.Background(), trans, TxMsg{To: testAddress(5)})
	require.NoError(t, err)
	require.Equal(t, int64(42), decodeRawTx(t, trans).ChainId().Int64())
}

func TestNodeSender(t *testing.T) {
	from := testAddress(1)
	hash := testHash(1)
	trans := newFakeTrans().
		reply("eth_gasPrice", NewHexInt(1)).
		reply("eth_estimateGas", NewHexInt(30000)).
		reply("eth_sendTransaction", hash)

	sender := NodeSender{From: from}
	require.Equal(t, from, sender.Address())

	out, err := sender.Send(context.Background(), trans, TxMsg{To: testAddress(2)})
	require.NoError(t, err)
	require.Equal(t, hash, out)

	msg := trans.lastParams("eth_sendTransaction")[0].(TxMsg)
	require.Equal(t, from, msg.From)
	require.Equal(t, int64(30000+GasPadding), msg.GasLimit.Big().Int64())
	require.Equal(t, 0, trans.count("eth_sendRawTransaction"))
}
