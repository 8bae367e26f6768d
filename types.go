package ethanol

import (
	"encoding/json"
	"math/big"
	"strconv"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

var null = []byte("null")

// Version of "[]byte" that uses "0x"-prefixed hex encoding and decoding.
type HexBytes []byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseHexBytes(input string) (HexBytes, error) {
	var out HexBytes
	err := out.UnmarshalText([]byte(input))
	return out, err
}

// Implements "encoding.TextMarshaler". Uses hex encoding prefixed with "0x".
func (self HexBytes) MarshalText() ([]byte, error) {
	return HexEncode(self), nil
}

/*
Implements "encoding.TextUnmarshaler". Empty input is ok. Otherwise, it must be
prefixed with "0x".
*/
func (self *HexBytes) UnmarshalText(input []byte) error {
	out, err := HexDecode(input)
	if err != nil {
		return err
	}
	*self = HexBytes(out)
	return nil
}

/*
Implements "json.Marshaler". A zero-length value encodes as "null". Otherwise,
it encodes as a hex string, prefixed with "0x".
*/
func (self HexBytes) MarshalJSON() ([]byte, error) {
	if len(self) == 0 {
		return null, nil
	}
	return hexEncodeQuoted(self), nil
}

// Implements "fmt.Stringer". Follows the same rules as "MarshalText".
func (self HexBytes) String() string {
	return string(HexEncode(self))
}

// Version of `big.Int` that encodes/decodes in base 16 with the "0x" prefix.
type HexInt big.Int

// Shortcut for wrapping an int64 into a *HexInt.
func NewHexInt(num int64) *HexInt {
	return (*HexInt)(big.NewInt(num))
}

// Implements "encoding.TextMarshaler". Uses hex encoding prefixed with "0x".
func (self *HexInt) MarshalText() ([]byte, error) {
	out := make([]byte, 0, 16)
	out = append(out, '0', 'x')
	return (*big.Int)(self).Append(out, 16), nil
}

/*
Implements "encoding.TextUnmarshaler". The input must be in base 16, prefixed
with "0x". Nodes occasionally send "0x" for zero; this is accepted.
*/
func (self *HexInt) UnmarshalText(input []byte) error {
	input, err := drop0x(input)
	if err != nil {
		return err
	}
	if len(input) == 0 {
		(*big.Int)(self).SetInt64(0)
		return nil
	}

	_, ok := (*big.Int)(self).SetString(string(input), 16)
	if !ok {
		return errors.Errorf("failed to decode %q as a hex integer", input)
	}
	return nil
}

// Implements "fmt.Stringer". Follows the same rules as "MarshalText".
func (self *HexInt) String() string {
	if self == nil {
		return "<nil>"
	}
	bytes, _ := self.MarshalText()
	return string(bytes)
}

// Returns the underlying *big.Int, or nil.
func (self *HexInt) Big() *big.Int { return (*big.Int)(self) }

// Version of `uint64` that encodes/decodes in base 16 with the "0x" prefix.
type HexUint64 uint64

// Implements "encoding.TextMarshaler". Uses hex encoding prefixed with "0x".
func (self HexUint64) MarshalText() ([]byte, error) {
	out := make([]byte, 0, 16)
	out = append(out, '0', 'x')
	return strconv.AppendUint(out, uint64(self), 16), nil
}

/*
Implements "encoding.TextUnmarshaler". The input must be in base 16, prefixed
with "0x".
*/
func (self *HexUint64) UnmarshalText(input []byte) error {
	input, err := drop0x(input)
	if err != nil {
		return err
	}
	out, err := strconv.ParseUint(string(input), 16, 64)
	*self = HexUint64(out)
	return errors.WithStack(err)
}

// Implements "fmt.Stringer". Follows the same rules as "MarshalText".
func (self HexUint64) String() string {
	bytes, _ := self.MarshalText()
	return string(bytes)
}

/*
Compact representation of an Ethereum address. Uses hex-encoding and
hex-decoding with the mandatory "0x" prefix.

A zero-initialized Address{} JSON-encodes as "null" and text-encodes as "".
This matters for "TxMsg.To": contract deployments must omit the receiver.
*/
type Address [20]byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseAddress(input string) (Address, error) {
	var out Address
	err := out.UnmarshalText([]byte(input))
	return out, err
}

// Version of "ParseAddress" that panics on error.
func MustParseAddress(input string) Address {
	out, err := ParseAddress(input)
	if err != nil {
		panic(err)
	}
	return out
}

/*
Implements "encoding.TextMarshaler". A zero-initialized value encodes as "",
otherwise uses hex encoding prefixed with "0x".
*/
func (self Address) MarshalText() ([]byte, error) {
	if self == ZeroAddress {
		return nil, nil
	}
	return HexEncode(self[:]), nil
}

// Implements "encoding.TextUnmarshaler".
func (self *Address) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*self = Address{}
		return nil
	}
	return HexDecodeTo(self[:], input)
}

// Implements "json.Marshaler". A zero-initialized value encodes as "null".
func (self Address) MarshalJSON() ([]byte, error) {
	if self == ZeroAddress {
		return null, nil
	}
	return hexEncodeQuoted(self[:]), nil
}

/*
Implements "fmt.Stringer". Lowercase hex prefixed with "0x". Unlike
"MarshalText" and "MarshalJSON", doesn't have special rules for zero values.
*/
func (self Address) String() string {
	return string(HexEncode(self[:]))
}

/*
Returns the mixed-case checksummed form described in EIP-55. Useful for
display; every function in this package accepts either form.
*/
func (self Address) Checksum() string {
	lower := []byte(self.String())

	hash := sha3.NewLegacyKeccak256()
	hash.Write(lower[2:])
	sum := hash.Sum(nil)

	for i := 2; i < len(lower); i++ {
		char := lower[i]
		if char < 'a' || char > 'f' {
			continue
		}
		nibble := sum[(i-2)/2]
		if (i-2)%2 == 0 {
			nibble >>= 4
		}
		if nibble&0xf >= 8 {
			lower[i] = char - ('a' - 'A')
		}
	}
	return string(lower)
}

// Converts to the go-ethereum representation, for ABI encoding and signing.
func (self Address) Common() gethcommon.Address { return gethcommon.Address(self) }

// Usually represents a block or transaction hash.
type Hash [32]byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseHash(input string) (Hash, error) {
	var out Hash
	err := out.UnmarshalText([]byte(input))
	return out, err
}

// Version of "ParseHash" that panics on error.
func MustParseHash(input string) Hash {
	out, err := ParseHash(input)
	if err != nil {
		panic(err)
	}
	return out
}

// Implements "encoding.TextMarshaler". A zero value encodes as "".
func (self Hash) MarshalText() ([]byte, error) {
	if self == ZeroHash {
		return nil, nil
	}
	return HexEncode(self[:]), nil
}

// Implements "encoding.TextUnmarshaler".
func (self *Hash) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*self = Hash{}
		return nil
	}
	return HexDecodeTo(self[:], input)
}

// Implements "json.Marshaler". A zero value encodes as "null".
func (self Hash) MarshalJSON() ([]byte, error) {
	if self == ZeroHash {
		return null, nil
	}
	return hexEncodeQuoted(self[:]), nil
}

// Implements "fmt.Stringer". No special rules for zero values.
func (self Hash) String() string {
	return string(HexEncode(self[:]))
}

// Converts to the go-ethereum representation.
func (self Hash) Common() gethcommon.Hash { return gethcommon.Hash(self) }

type Bloom [256]byte

// Implements "encoding.TextMarshaler". A zero value encodes as "".
func (self Bloom) MarshalText() ([]byte, error) {
	if self == ZeroBloom {
		return nil, nil
	}
	return HexEncode(self[:]), nil
}

// Implements "encoding.TextUnmarshaler".
func (self *Bloom) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*self = ZeroBloom
		return nil
	}
	return HexDecodeTo(self[:], input)
}

type either struct {
	val []byte
	err error
}

// https://www.jsonrpc.org/specification#request_object
type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// https://www.jsonrpc.org/specification#notification
type rpcNotification struct {
	Jsonrpc string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  rpcNotificationBody `json:"params"`
}

type rpcNotificationBody struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// https://www.jsonrpc.org/specification#response_object
type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"` // assign `*someType` to decode as that type
	Error   *RpcError       `json:"error"`
}

/*
Represents an error that arrives over JSON RPC. See
https://www.jsonrpc.org/specification#error_object for details.
*/
type RpcError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Implements "error". Includes the RPC error details if possible.
func (self RpcError) Error() string {
	str := "RPC error " + strconv.FormatInt(self.Code, 10) + ": " + self.Message
	if len(self.Data) > 0 {
		str += " Additional details: " + string(self.Data)
	}
	return str
}

/*
Represents the input for an Ethereum transaction, or the input to a non-mutating
contract call. Passed to the various RPC methods. Empty fields are filled in by
"AddEstimates" or by a Sender.
*/
type TxMsg struct {
	From     Address    `json:"from"`
	To       Address    `json:"to"`
	Data     HexBytes   `json:"data"`
	Value    *HexInt    `json:"value,omitempty"`
	GasPrice *HexInt    `json:"gasPrice,omitempty"`
	GasLimit *HexInt    `json:"gas,omitempty"`
	Nonce    *HexUint64 `json:"nonce,omitempty"`
}

// Represents an Ethereum block without any attached transactions.
type BlockHead struct {
	Difficulty       *HexInt  `json:"difficulty"`
	ExtraData        HexBytes `json:"extraData"`
	GasLimit         *HexInt  `json:"gasLimit"`
	GasUsed          *HexInt  `json:"gasUsed"`
	Hash             Hash     `json:"hash"`
	LogsBloom        Bloom    `json:"logsBloom"`
	Miner            Address  `json:"miner"`
	MixHash          Hash     `json:"mixHash"`
	Nonce            HexBytes `json:"nonce"`
	Number           *HexInt  `json:"number"`
	ParentHash       Hash     `json:"parentHash"`
	ReceiptsRoot     Hash     `json:"receiptsRoot"`
	Sha3Uncles       Hash     `json:"sha3Uncles"`
	StateRoot        Hash     `json:"stateRoot"`
	Timestamp        *HexInt  `json:"timestamp"`
	TransactionsRoot Hash     `json:"transactionsRoot"`
}

// Block with full transaction objects, as returned by "EthGetBlockByNumber".
type Block struct {
	BlockHead
	Transactions []Transaction `json:"transactions"`
}

/*
Represents an Ethereum transaction as returned by "eth_getTransactionByHash".
"BlockNumber" is nil while the transaction is pending.
*/
type Transaction struct {
	Hash             Hash     `json:"hash"`
	Nonce            *HexInt  `json:"nonce"`
	BlockHash        Hash     `json:"blockHash"`
	BlockNumber      *HexInt  `json:"blockNumber"`
	TransactionIndex *HexInt  `json:"transactionIndex"`
	From             Address  `json:"from"`
	To               Address  `json:"to"`
	Value            *HexInt  `json:"value"`
	GasPrice         *HexInt  `json:"gasPrice"`
	Gas              *HexInt  `json:"gas"`
	Input            HexBytes `json:"input"`
	ChainId          *HexInt  `json:"chainId"`
	V                *HexInt  `json:"v"`
	R                *HexInt  `json:"r"`
	S                *HexInt  `json:"s"`
}

// True once the transaction has been included in a block.
func (self Transaction) IsMined() bool { return self.BlockNumber != nil }

/*
Represents a transaction receipt. "Status" is nil when the node doesn't report
it, which is the case on chains that predate the Byzantium fork.
*/
type TxReceipt struct {
	BlockHash         Hash       `json:"blockHash"`
	BlockNumber       *HexInt    `json:"blockNumber"`
	ContractAddress   Address    `json:"contractAddress"`
	GasUsed           *HexInt    `json:"gasUsed"`
	Logs              []LogEntry `json:"logs"`
	LogsBloom         Bloom      `json:"logsBloom"`
	CumulativeGasUsed *HexInt    `json:"cumulativeGasUsed"`
	Status            *HexInt    `json:"status"`
	TransactionHash   Hash       `json:"transactionHash"`
	TransactionIndex  *HexInt    `json:"transactionIndex"`
}

/*
A log entry, typically obtained via "EthGetLogs" and used for contract events.

Original definition in "go-ethereum":
https://github.com/ethereum/go-ethereum/blob/0ae462fb80b8a95e38af08d894ea9ecf9e45f2e7/core/types/log.go#L31
*/
type LogEntry struct {
	Address          Address   `json:"address"`
	Topics           []Hash    `json:"topics"`
	Data             HexBytes  `json:"data"`
	BlockHash        Hash      `json:"blockHash"`
	BlockNumber      HexUint64 `json:"blockNumber"`
	TransactionHash  Hash      `json:"transactionHash"`
	TransactionIndex HexUint64 `json:"transactionIndex"`
	LogIndex         HexUint64 `json:"logIndex"`
	Removed          bool      `json:"removed"`
}

/*
Stand-in for anything representing a block number. Makes the signatures of
RPC functions more readable.

RPC methods accept block numbers as hex-encoded numbers or the magic strings
"earliest", "latest", "pending". See the "BlockNumberX" constants. Plain
uint64 and *big.Int are converted by the functions that accept this type.
*/
type BlockNumber interface{}

// LogFilter is passed to "EthGetLogs".
type LogFilter struct {
	FromBlock BlockNumber `json:"fromBlock,omitempty"`
	ToBlock   BlockNumber `json:"toBlock,omitempty"`
	Address   []Address   `json:"address,omitempty"`

	/**
	"Topics" represent the event selector followed by indexed event parameters.
	Each position is either nil (wildcard), a Hash, or a slice of hashes (any
	of).
	*/
	Topics []interface{} `json:"topics,omitempty"`
}
