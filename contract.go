package ethanol

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

/*
Compiled contract that hasn't been deployed yet: the ABI plus the creation
bytecode. Obtained from "NewContractBlank" or "Compiler.Compile", and passed to
"User.Deploy".
*/
type ContractBlank struct {
	Abi abi.ABI
	Bin HexBytes
}

/*
Validates and parses the ABI JSON and the bytecode. The bytecode may be given
with or without the "0x" prefix, as emitted by solc. Missing ABI or bytecode,
or the empty bytecode "0x", are rejected.
*/
func NewContractBlank(abiJson []byte, bin string) (ContractBlank, error) {
	if len(bytes.TrimSpace(abiJson)) == 0 {
		return ContractBlank{}, errors.New("abi argument is missing")
	}
	if bin == "" {
		return ContractBlank{}, errors.New("bin argument is missing")
	}
	if !strings.HasPrefix(bin, "0x") {
		bin = "0x" + bin
	}
	if bin == "0x" {
		return ContractBlank{}, errors.Errorf("invalid bin value: %v", bin)
	}

	parsed, err := ParseAbi(abiJson)
	if err != nil {
		return ContractBlank{}, err
	}
	code, err := ParseHexBytes(bin)
	if err != nil {
		return ContractBlank{}, errors.Wrap(err, "invalid bin value")
	}
	return ContractBlank{Abi: parsed, Bin: code}, nil
}

// Parses a JSON ABI definition.
func ParseAbi(input []byte) (abi.ABI, error) {
	out, err := abi.JSON(bytes.NewReader(input))
	return out, errors.Wrap(err, "failed to parse ABI")
}

// Reads and parses a ".abi" file, as produced by "solc --abi".
func ReadAbiFile(path string) (abi.ABI, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, errors.WithStack(err)
	}
	return ParseAbi(content)
}

/*
Deployed contract: an ABI bound to an address on a specific chain. Reads and
calls go through "User"; the contract itself only queries history.
*/
type Contract struct {
	Abi     abi.ABI
	Address Address

	trans  Trans
	poller Poller
}

func NewContract(trans Trans, def abi.ABI, addr Address, poller Poller) Contract {
	return Contract{Abi: def, Address: addr, trans: trans, poller: poller}
}

/*
Returns the named event as emitted by this contract between the given blocks,
inclusive, oldest first.
*/
func (self Contract) History(ctx context.Context, event string, from, to BlockNumber) ([]ContractEvent, error) {
	def, ok := self.Abi.Events[event]
	if !ok {
		return nil, errors.Errorf("event %q not found in the contract ABI", event)
	}

	logs, err := EthGetLogs(ctx, self.trans, LogFilter{
		FromBlock: from,
		ToBlock:   to,
		Address:   []Address{self.Address},
		Topics:    []interface{}{Hash(def.ID)},
	})
	if err != nil {
		return nil, err
	}
	return self.decodeLogs(logs)
}

/*
Returns a handle for an existing transaction sent to this contract. Fails
right away if the node doesn't know the hash, or if the transaction targets a
different address; doesn't wait for mining.
*/
func (self Contract) Transaction(ctx context.Context, hash Hash) (ContractTx, error) {
	tx, err := EthGetTxByHash(ctx, self.trans, hash)
	if err != nil {
		return ContractTx{}, err
	}
	if tx == nil {
		return ContractTx{}, errors.WithStack(TxNotFoundError{Hash: hash})
	}
	if tx.To != self.Address {
		return ContractTx{}, errors.Errorf("transaction %v was sent to %v, not to contract %v", hash, tx.To, self.Address)
	}
	return self.tx(hash, ""), nil
}

func (self Contract) tx(hash Hash, desc string) ContractTx {
	return ContractTx{
		TxHandle: NewTxHandle(self.trans, hash, desc, self.poller),
		contract: self,
	}
}

/*
Converts loosely typed arguments into the Go types expected by
"abi.Arguments.Pack": integers become *big.Int or the exact fixed-size integer
type, addresses may be given as Address, "common.Address" or hex strings.
Anything else passes through unchanged.
*/
func coerceArgs(inputs abi.Arguments, args []interface{}) ([]interface{}, error) {
	if len(inputs) != len(args) {
		return nil, errors.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}

	out := make([]interface{}, len(args))
	for i, arg := range args {
		val, err := coerceArg(inputs[i].Type, arg)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d (%v)", i, inputs[i].Name)
		}
		out[i] = val
	}
	return out, nil
}

func coerceArg(typ abi.Type, arg interface{}) (interface{}, error) {
	switch typ.T {
	case abi.IntTy, abi.UintTy:
		num, ok := toBigInt(arg)
		if !ok {
			return arg, nil
		}
		goType := typ.GetType()
		if goType == reflect.TypeOf((*big.Int)(nil)) {
			return num, nil
		}
		if typ.T == abi.UintTy {
			if num.Sign() < 0 || num.BitLen() > typ.Size {
				return nil, errors.Errorf("%v overflows %v", num, typ)
			}
			return reflect.ValueOf(num.Uint64()).Convert(goType).Interface(), nil
		}
		// Two's complement: -2^(n-1) fits, 2^(n-1) doesn't.
		mag := num
		if num.Sign() < 0 {
			mag = new(big.Int).Not(num)
		}
		if mag.BitLen() > typ.Size-1 {
			return nil, errors.Errorf("%v overflows %v", num, typ)
		}
		return reflect.ValueOf(num.Int64()).Convert(goType).Interface(), nil

	case abi.AddressTy:
		switch val := arg.(type) {
		case Address:
			return val.Common(), nil
		case *Address:
			return val.Common(), nil
		case string:
			if !gethcommon.IsHexAddress(val) {
				return nil, errors.Errorf("invalid address %q", val)
			}
			return gethcommon.HexToAddress(val), nil
		}
	}
	return arg, nil
}

func toBigInt(arg interface{}) (*big.Int, bool) {
	switch val := arg.(type) {
	case *big.Int:
		return val, true
	case *HexInt:
		return val.Big(), true
	case int:
		return big.NewInt(int64(val)), true
	case int8:
		return big.NewInt(int64(val)), true
	case int16:
		return big.NewInt(int64(val)), true
	case int32:
		return big.NewInt(int64(val)), true
	case int64:
		return big.NewInt(val), true
	case uint:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), true
	case uint64:
		return new(big.Int).SetUint64(val), true
	}
	return nil, false
}

// Packs a method call: 4-byte selector followed by the encoded arguments.
func (self Contract) pack(method string, args []interface{}) ([]byte, error) {
	def, ok := self.Abi.Methods[method]
	if !ok {
		return nil, errors.Errorf("method %q not found in the contract ABI", method)
	}
	args, err := coerceArgs(def.Inputs, args)
	if err != nil {
		return nil, errors.Wrapf(err, "method %q", method)
	}
	out, err := self.Abi.Pack(method, args...)
	return out, errors.Wrapf(err, "failed to encode call to %q", method)
}

// Packs constructor arguments. Returns nil when the constructor takes none.
func packConstructor(def abi.ABI, args []interface{}) ([]byte, error) {
	args, err := coerceArgs(def.Constructor.Inputs, args)
	if err != nil {
		return nil, errors.Wrap(err, "constructor")
	}
	out, err := def.Pack("", args...)
	return out, errors.Wrap(err, "failed to encode constructor arguments")
}
