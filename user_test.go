package ethanol

import (
	"context"
	"math/big"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// Node-signed user backed by a fake node that mines everything it receives.
func testUser(t *testing.T, trans *fakeTrans) User {
	trans.
		reply("eth_gasPrice", NewHexInt(1)).
		reply("eth_estimateGas", NewHexInt(50000))
	return NewUser(trans, NodeSender{From: testAddress(1)}, testPoller(t))
}

func TestUserGive(t *testing.T) {
	hash := testHash(1)
	trans := newFakeTrans().
		reply("eth_sendTransaction", hash).
		reply("eth_getTransactionByHash", minedTx(hash, 71000)).
		reply("eth_getTransactionReceipt", receiptWithStatus(hash, 1, 21000))
	user := testUser(t, trans)

	handle, err := user.Give(context.Background(), testAddress(2), big.NewInt(Ether))
	require.NoError(t, err)
	require.Equal(t, hash, handle.Hash())
	require.Contains(t, handle.Desc(), "transfer")
	require.NoError(t, handle.Success(context.Background()))

	msg := trans.lastParams("eth_sendTransaction")[0].(TxMsg)
	require.Equal(t, testAddress(2), msg.To)
	require.Equal(t, 0, big.NewInt(Ether).Cmp(msg.Value.Big()))
}

func TestUserGiveFailure(t *testing.T) {
	trans := newFakeTrans().on("eth_sendTransaction", func([]interface{}) (interface{}, error) {
		return nil, RpcError{Code: -32000, Message: "insufficient funds"}
	})
	user := testUser(t, trans)

	_, err := user.Give(context.Background(), testAddress(2), big.NewInt(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient funds")
}

func TestUserBalance(t *testing.T) {
	trans := newFakeTrans().reply("eth_getBalance", NewHexInt(123))
	user := testUser(t, trans)

	balance, err := user.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(123), balance.Int64())
	require.Equal(t, testAddress(1), trans.lastParams("eth_getBalance")[0])
}

func TestUserDeploy(t *testing.T) {
	hash := testHash(1)
	deployed := testAddress(9)
	receipt := receiptWithStatus(hash, 1, 40000)
	receipt.ContractAddress = deployed

	trans := newFakeTrans().
		reply("eth_sendTransaction", hash).
		reply("eth_getTransactionByHash", minedTx(hash, 90000)).
		reply("eth_getTransactionReceipt", receipt)
	user := testUser(t, trans)

	blank, err := NewContractBlank([]byte(tokenAbiJson), tokenBin)
	require.NoError(t, err)

	tx, err := user.Deploy(context.Background(), blank, 1000, "Token", "TKN")
	require.NoError(t, err)
	require.Equal(t, deploymentDesc, tx.Desc())

	msg := trans.lastParams("eth_sendTransaction")[0].(TxMsg)
	require.Equal(t, ZeroAddress, msg.To)
	require.Equal(t, []byte(blank.Bin), []byte(msg.Data[:len(blank.Bin)]))
	require.Greater(t, len(msg.Data), len(blank.Bin))

	contract, err := tx.Contract(context.Background())
	require.NoError(t, err)
	require.Equal(t, deployed, contract.Address)

	_, err = user.Deploy(context.Background(), blank, "wrong")
	require.Error(t, err)
}

func TestUserDeployWithoutAddress(t *testing.T) {
	hash := testHash(1)
	trans := newFakeTrans().
		reply("eth_sendTransaction", hash).
		reply("eth_getTransactionByHash", minedTx(hash, 90000)).
		reply("eth_getTransactionReceipt", receiptWithStatus(hash, 1, 40000))
	user := testUser(t, trans)

	blank, err := NewContractBlank([]byte(tokenAbiJson), tokenBin)
	require.NoError(t, err)

	tx, err := user.Deploy(context.Background(), blank, 1000, "Token", "TKN")
	require.NoError(t, err)

	_, err = tx.Contract(context.Background())
	require.Error(t, err)
}

func TestUserRead(t *testing.T) {
	def := testTokenAbi(t)
	output, err := def.Methods["balanceOf"].Outputs.Pack(big.NewInt(500))
	require.NoError(t, err)

	trans := newFakeTrans().reply("eth_call", HexBytes(output))
	user := testUser(t, trans)
	contract := NewContract(trans, def, testAddress(7), Poller{})

	out, err := user.Read(context.Background(), contract, "balanceOf", testAddress(2))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 0, big.NewInt(500).Cmp(out[0].(*big.Int)))

	params := trans.lastParams("eth_call")
	msg := params[0].(TxMsg)
	require.Equal(t, testAddress(1), msg.From)
	require.Equal(t, testAddress(7), msg.To)
	require.Equal(t, def.Methods["balanceOf"].ID, []byte(msg.Data[:4]))
	require.Equal(t, BlockNumber(BlockNumberLatest), params[1])
	require.Equal(t, 0, trans.count("eth_sendTransaction"))
}

func TestUserCall(t *testing.T) {
	def := testTokenAbi(t)
	contractAddr := testAddress(7)
	hash := testHash(1)

	trans := newFakeTrans().
		reply("eth_sendTransaction", hash).
		reply("eth_getTransactionByHash", minedTx(hash, 90000)).
		reply("eth_getTransactionReceipt", receiptWithStatus(hash, 1, 40000)).
		reply("eth_getLogs", []LogEntry{
			transferLog(t, def, contractAddr, hash, testAddress(1), testAddress(2), 5),
		})
	user := testUser(t, trans)
	contract := NewContract(trans, def, contractAddr, Poller{})

	tx, err := user.Call(context.Background(), contract, "transfer", testAddress(2), 5)
	require.NoError(t, err)
	require.Equal(t, "call transfer", tx.Desc())
	require.Equal(t, contractAddr, tx.Contract().Address)

	events, err := tx.Logs(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, gethcommon.Address(testAddress(2)), events[0].Values["to"])

	_, err = user.Call(context.Background(), contract, "missing")
	require.Error(t, err)
}
