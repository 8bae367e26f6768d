package ethanol

import (
	"context"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testBlockchain(t *testing.T, trans Trans, opts ...Option) *Blockchain {
	opts = append([]Option{
		WithLogger(zerolog.New(zerolog.NewTestWriter(t))),
		WithPollInterval(time.Millisecond),
	}, opts...)

	chain, err := NewBlockchain(trans, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { chain.Close() })
	return chain
}

func TestBlockchainDefaultUser(t *testing.T) {
	chain := testBlockchain(t, newFakeTrans())

	user, err := chain.User(context.Background(), UserOptions{})
	require.NoError(t, err)

	key, err := Mnemonic(DefaultMnemonic).DeriveKey(0)
	require.NoError(t, err)
	require.Equal(t, key.Address(), user.Address())

	other, err := chain.User(context.Background(), UserOptions{Index: 1})
	require.NoError(t, err)
	require.NotEqual(t, user.Address(), other.Address())
}

func TestBlockchainUsersShareSender(t *testing.T) {
	chain := testBlockchain(t, newFakeTrans())

	first, err := chain.User(context.Background(), UserOptions{Index: 2})
	require.NoError(t, err)
	second, err := chain.User(context.Background(), UserOptions{Mnemonic: DefaultMnemonic, Index: 2})
	require.NoError(t, err)
	require.Same(t, first.sender, second.sender)
}

func TestBlockchainInvalidMnemonic(t *testing.T) {
	chain := testBlockchain(t, newFakeTrans())
	_, err := chain.User(context.Background(), UserOptions{Mnemonic: "not a mnemonic"})
	require.Error(t, err)
}

func TestBlockchainNodeSigning(t *testing.T) {
	node := testAddress(1)
	trans := newFakeTrans().reply("eth_accounts", []Address{node, testAddress(2)})
	chain := testBlockchain(t, trans, WithNodeSigning(), WithoutPinger())

	user, err := chain.User(context.Background(), UserOptions{})
	require.NoError(t, err)
	require.Equal(t, node, user.Address())
	require.IsType(t, NodeSender{}, user.sender)

	_, err = chain.User(context.Background(), UserOptions{Index: 1})
	require.Error(t, err)
	_, err = chain.User(context.Background(), UserOptions{Mnemonic: DefaultMnemonic})
	require.Error(t, err)
}

func TestBlockchainNodeWithoutAccounts(t *testing.T) {
	trans := newFakeTrans().reply("eth_accounts", []Address{})
	chain := testBlockchain(t, trans, WithNodeSigning(), WithoutPinger())

	_, err := chain.User(context.Background(), UserOptions{})
	require.Error(t, err)
}

func TestBlockchainStartsPingerOnce(t *testing.T) {
	trans := newFakeTrans().
		reply("eth_accounts", []Address{testAddress(1)}).
		reply("eth_gasPrice", NewHexInt(1)).
		reply("eth_estimateGas", NewHexInt(21000)).
		reply("eth_sendTransaction", testHash(1))

	chain := testBlockchain(t, trans, WithNodeSigning(), WithPingInterval(time.Millisecond))

	for i := 0; i < 3; i++ {
		_, err := chain.User(context.Background(), UserOptions{})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return trans.count("eth_sendTransaction") >= 2 }, time.Second, time.Millisecond)

	chain.lock.Lock()
	require.True(t, chain.pinging)
	chain.lock.Unlock()

	require.NoError(t, chain.Close())
	time.Sleep(10 * time.Millisecond)
	stopped := trans.count("eth_sendTransaction")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, stopped, trans.count("eth_sendTransaction"))
}

func TestBlockchainWithoutPinger(t *testing.T) {
	trans := newFakeTrans().reply("eth_accounts", []Address{testAddress(1)})
	chain := testBlockchain(t, trans, WithNodeSigning(), WithoutPinger(), WithPingInterval(time.Millisecond))

	_, err := chain.User(context.Background(), UserOptions{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, trans.count("eth_sendTransaction"))
}

func TestBlockchainBlockByHashIsCached(t *testing.T) {
	hash := testHash(0xb7)
	trans := newFakeTrans().reply("eth_getBlockByHash", BlockHead{Hash: hash, Number: NewHexInt(7)})
	chain := testBlockchain(t, trans)

	for i := 0; i < 3; i++ {
		block, err := chain.BlockByHash(context.Background(), hash)
		require.NoError(t, err)
		require.Equal(t, hash, block.Hash)
		require.Equal(t, int64(7), block.Number.Big().Int64())
	}
	require.Equal(t, 1, trans.count("eth_getBlockByHash"))
}

func TestBlockchainBlockByHashMissing(t *testing.T) {
	trans := newFakeTrans().reply("eth_getBlockByHash", nil)
	chain := testBlockchain(t, trans)

	_, err := chain.BlockByHash(context.Background(), testHash(1))
	require.Error(t, err)
	_, err = chain.BlockByHash(context.Background(), testHash(1))
	require.Error(t, err)
	require.Equal(t, 2, trans.count("eth_getBlockByHash"))
}

func TestBlockchainBlocks(t *testing.T) {
	hash := testHash(1)
	trans := newFakeTrans().
		reply("eth_blockNumber", HexUint64(12)).
		reply("eth_getBlockByNumber", Block{
			BlockHead:    BlockHead{Number: NewHexInt(12)},
			Transactions: []Transaction{minedTx(hash, 21000)},
		})
	chain := testBlockchain(t, trans)

	num, err := chain.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(12), num)

	block, err := chain.Block(context.Background(), num)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1, spew.Sdump(block))
	require.Equal(t, hash, block.Transactions[0].Hash)

	params := trans.lastParams("eth_getBlockByNumber")
	require.Equal(t, BlockNumber(HexUint64(12)), params[0])
	require.Equal(t, true, params[1])
}

func TestBlockchainConfirm(t *testing.T) {
	hash := testHash(1)
	trans := newFakeTrans().
		sequence("eth_getTransactionByHash", pendingTx(hash, 50000), minedTx(hash, 50000)).
		reply("eth_getTransactionReceipt", receiptWithStatus(hash, 1, 30000))
	chain := testBlockchain(t, trans)

	receipt, err := chain.Confirm(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, hash, receipt.TransactionHash)

	handle := chain.Transaction(hash, "external")
	require.Equal(t, "external", handle.Desc())
	require.NoError(t, handle.Success(context.Background()))
}

func TestBlockchainBalance(t *testing.T) {
	trans := newFakeTrans().reply("eth_getBalance", NewHexInt(Ether))
	chain := testBlockchain(t, trans)

	balance, err := chain.Balance(context.Background(), testAddress(1))
	require.NoError(t, err)
	require.Equal(t, 0, bigInt(Ether).Cmp(balance))

	params := trans.lastParams("eth_getBalance")
	require.Equal(t, testAddress(1), params[0])
	require.Equal(t, BlockNumber(BlockNumberLatest), params[1])
}

func TestBlockchainOptions(t *testing.T) {
	chain := testBlockchain(t, newFakeTrans(), WithTimeout(time.Minute), WithCacheSize(-1))
	require.Equal(t, time.Minute, chain.Poller().Timeout)
	require.Equal(t, time.Millisecond, chain.Poller().Interval)
	require.Empty(t, chain.Url())
	require.NotNil(t, chain.Trans())

	require.NoError(t, chain.Close())
	require.NoError(t, chain.Close())
}

func TestAtRejectsUnknownScheme(t *testing.T) {
	_, err := At(context.Background(), "ftp://localhost:8545")
	require.Error(t, err)
}
