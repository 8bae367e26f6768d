package ethanol

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressChecksum(t *testing.T) {
	// Vectors from EIP-55.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}

	for _, vector := range vectors {
		addr, err := ParseAddress(vector)
		require.NoError(t, err)
		require.Equal(t, vector, addr.Checksum())
		require.Equal(t, addr.Common().Hex(), addr.Checksum())
	}
}

func TestAddressZeroEncoding(t *testing.T) {
	encoded, err := json.Marshal(Address{})
	require.NoError(t, err)
	require.Equal(t, "null", string(encoded))

	text, err := Address{}.MarshalText()
	require.NoError(t, err)
	require.Empty(t, text)

	require.Equal(t, "0x0000000000000000000000000000000000000000", Address{}.String())
}

func TestAddressRequiresPrefix(t *testing.T) {
	_, err := ParseAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.Error(t, err)

	_, err = ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea")
	require.Error(t, err)
}

func TestTxMsgOmitsReceiverForDeployment(t *testing.T) {
	encoded, err := json.Marshal(TxMsg{From: testAddress(1), Data: HexBytes{0x60, 0x80}})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &fields))
	require.Nil(t, fields["to"])
	require.Equal(t, "0x6080", fields["data"])
	require.NotContains(t, fields, "gas")
	require.NotContains(t, fields, "nonce")
}

func TestHexIntDecoding(t *testing.T) {
	cases := map[string]int64{
		"0x0":    0,
		"0x":     0,
		"0x1":    1,
		"0x5208": 21000,
	}
	for input, expected := range cases {
		var num HexInt
		require.NoError(t, num.UnmarshalText([]byte(input)), input)
		require.Equal(t, 0, big.NewInt(expected).Cmp(num.Big()), input)
	}

	var num HexInt
	require.Error(t, num.UnmarshalText([]byte("5208")))
	require.Error(t, num.UnmarshalText([]byte("0xzz")))

	require.Equal(t, "0x5208", NewHexInt(21000).String())
	require.Equal(t, "<nil>", (*HexInt)(nil).String())
}

func TestHexUint64(t *testing.T) {
	var num HexUint64
	require.NoError(t, json.Unmarshal([]byte(`"0x1b4"`), &num))
	require.Equal(t, HexUint64(436), num)
	require.Equal(t, "0x1b4", num.String())
}

func TestHexBytes(t *testing.T) {
	bytes, err := ParseHexBytes("0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, HexBytes{0xde, 0xad, 0xbe, 0xef}, bytes)
	require.Equal(t, "0xdeadbeef", bytes.String())

	empty, err := ParseHexBytes("")
	require.NoError(t, err)
	require.Empty(t, empty)

	encoded, err := json.Marshal(HexBytes(nil))
	require.NoError(t, err)
	require.Equal(t, "null", string(encoded))

	_, err = ParseHexBytes("deadbeef")
	require.Error(t, err)
}

func TestTransactionDecoding(t *testing.T) {
	const pending = `{
		"hash": "0x98e6a7d3379a5f0184f234a89589657b4d161bf6c6764ccb74105cbb474bd598",
		"blockHash": null,
		"blockNumber": null,
		"from": "0x5e94baef74b60e98116b971e9240d914f4059e27",
		"to": null,
		"gas": "0x5208",
		"input": "0x"
	}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(pending), &tx))
	require.False(t, tx.IsMined())
	require.Equal(t, ZeroAddress, tx.To)
	require.Equal(t, int64(21000), tx.Gas.Big().Int64())

	const mined = `{
		"hash": "0x98e6a7d3379a5f0184f234a89589657b4d161bf6c6764ccb74105cbb474bd598",
		"blockNumber": "0x10",
		"gas": "0x5208"
	}`
	require.NoError(t, json.Unmarshal([]byte(mined), &tx))
	require.True(t, tx.IsMined())
}

func TestReceiptStatusPresence(t *testing.T) {
	var withStatus TxReceipt
	require.NoError(t, json.Unmarshal([]byte(`{"status": "0x0", "gasUsed": "0x5208"}`), &withStatus))
	require.NotNil(t, withStatus.Status)
	require.Equal(t, 0, withStatus.Status.Big().Sign())

	var withoutStatus TxReceipt
	require.NoError(t, json.Unmarshal([]byte(`{"gasUsed": "0x5208"}`), &withoutStatus))
	require.Nil(t, withoutStatus.Status)

	var nullStatus TxReceipt
	require.NoError(t, json.Unmarshal([]byte(`{"status": null, "gasUsed": "0x5208"}`), &nullStatus))
	require.Nil(t, nullStatus.Status)
}

func TestEncodeBlockNumber(t *testing.T) {
	require.Equal(t, BlockNumber(HexUint64(16)), encodeBlockNumber(uint64(16)))
	require.Equal(t, BlockNumber(HexUint64(16)), encodeBlockNumber(16))
	require.Equal(t, BlockNumber(BlockNumberLatest), encodeBlockNumber(nil))
	require.Equal(t, BlockNumber(BlockNumberPending), encodeBlockNumber(BlockNumberPending))

	encoded, err := json.Marshal(encodeBlockNumber(big.NewInt(255)))
	require.NoError(t, err)
	require.Equal(t, `"0xff"`, string(encoded))
}

func TestEthWeiConversion(t *testing.T) {
	require.Equal(t, 0, EthToWei(1.5).Cmp(big.NewInt(1500000000000000000)))
	require.Equal(t, 2.0, WeiToEth(new(big.Int).Mul(big.NewInt(2), big.NewInt(Ether))))
}
