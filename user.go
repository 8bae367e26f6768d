package ethanol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

/*
Blockchain account able to send transactions. Obtained from "Blockchain.User"
and friends. Safe for concurrent use.
*/
type User struct {
	sender Sender
	trans  Trans
	poller Poller
}

func NewUser(trans Trans, sender Sender, poller Poller) User {
	return User{sender: sender, trans: trans, poller: poller}
}

func (self User) Address() Address { return self.sender.Address() }

// Returns the account balance in wei as of the latest block.
func (self User) Balance(ctx context.Context) (*big.Int, error) {
	return EthGetBalance(ctx, self.trans, self.Address(), BlockNumberLatest)
}

// Transfers "wei" to the given address.
func (self User) Give(ctx context.Context, to Address, wei *big.Int) (TxHandle, error) {
	hash, err := self.send(ctx, TxMsg{To: to, Value: (*HexInt)(wei)})
	if err != nil {
		return TxHandle{}, errors.Wrapf(err, "failed to transfer %v wei to %v", wei, to)
	}
	return NewTxHandle(self.trans, hash, fmt.Sprintf("transfer %v wei to %v", wei, to), self.poller), nil
}

/*
Submits a contract creation with the given constructor arguments. Use
"DeploymentTx.Contract" to wait for the deployed contract.
*/
func (self User) Deploy(ctx context.Context, blank ContractBlank, args ...interface{}) (DeploymentTx, error) {
	input, err := packConstructor(blank.Abi, args)
	if err != nil {
		return DeploymentTx{}, err
	}

	data := make([]byte, 0, len(blank.Bin)+len(input))
	data = append(data, blank.Bin...)
	data = append(data, input...)

	hash, err := self.send(ctx, TxMsg{Data: data})
	if err != nil {
		return DeploymentTx{}, errors.Wrap(err, "failed to deploy contract")
	}
	return DeploymentTx{
		TxHandle: NewTxHandle(self.trans, hash, deploymentDesc, self.poller),
		abi:      blank.Abi,
	}, nil
}

/*
Invokes a non-mutating contract method with "eth_call" and returns the decoded
outputs in ABI order. No transaction is created.
*/
func (self User) Read(ctx context.Context, contract Contract, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contract.pack(method, args)
	if err != nil {
		return nil, err
	}

	output, err := EthCallLatest(ctx, self.trans, TxMsg{
		From: self.Address(),
		To:   contract.Address,
		Data: input,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", method)
	}

	out, err := contract.Abi.Unpack(method, output)
	return out, errors.Wrapf(err, "failed to decode output of %q", method)
}

// Sends a transaction invoking a contract method.
func (self User) Call(ctx context.Context, contract Contract, method string, args ...interface{}) (ContractTx, error) {
	input, err := contract.pack(method, args)
	if err != nil {
		return ContractTx{}, err
	}

	hash, err := self.send(ctx, TxMsg{To: contract.Address, Data: input})
	if err != nil {
		return ContractTx{}, errors.Wrapf(err, "failed to call %q", method)
	}

	contract.poller = self.poller
	return contract.tx(hash, "call "+method), nil
}

func (self User) send(ctx context.Context, msg TxMsg) (Hash, error) {
	return self.sender.Send(ctx, self.trans, msg)
}
