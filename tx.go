package ethanol

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

/*
Handle for a submitted transaction. Immutable and safe to share between
goroutines. Every call to "Receipt" or "Success" polls the node afresh; the
outcome is never cached.
*/
type TxHandle struct {
	trans  Trans
	hash   Hash
	desc   string
	poller Poller
}

/*
Creates a handle for an already submitted transaction. "desc" is a short
human-readable description that ends up in TxFailedError.
*/
func NewTxHandle(trans Trans, hash Hash, desc string, poller Poller) TxHandle {
	return TxHandle{trans: trans, hash: hash, desc: desc, poller: poller}
}

// Returns the transaction hash. Doesn't perform any I/O.
func (self TxHandle) Hash() Hash { return self.hash }

func (self TxHandle) Desc() string { return self.desc }

// Returns a copy of the handle that waits with the given poller.
func (self TxHandle) WithPoller(poller Poller) TxHandle {
	self.poller = poller
	return self
}

/*
Waits until the transaction is mined and returns its receipt. Fails with
TxNotFoundError for unknown hashes and with TxFailedError for reverted
transactions.
*/
func (self TxHandle) Receipt(ctx context.Context) (TxReceipt, error) {
	return self.poller.Confirm(ctx, self.trans, self.hash, self.desc)
}

// Same as "Receipt" but discards the receipt.
func (self TxHandle) Success(ctx context.Context) error {
	_, err := self.Receipt(ctx)
	return err
}

// Transaction that invokes a contract method.
type ContractTx struct {
	TxHandle
	contract Contract
}

func (self ContractTx) Contract() Contract { return self.contract }

/*
Waits for the receipt, then returns the events this transaction emitted from
the contract. Logs are queried from the receipt's block and filtered by
transaction hash, since one block may contain logs of other transactions to
the same contract.
*/
func (self ContractTx) Logs(ctx context.Context) ([]ContractEvent, error) {
	receipt, err := self.Receipt(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := EthGetLogs(ctx, self.trans, LogFilter{
		FromBlock: receipt.BlockNumber.Big(),
		ToBlock:   receipt.BlockNumber.Big(),
		Address:   []Address{self.contract.Address},
	})
	if err != nil {
		return nil, err
	}

	own := logs[:0]
	for _, log := range logs {
		if log.TransactionHash == self.hash {
			own = append(own, log)
		}
	}
	return self.contract.decodeLogs(own)
}

// Description given to every deployment transaction.
const deploymentDesc = "contract deployment"

// Transaction that creates a contract.
type DeploymentTx struct {
	TxHandle
	abi abi.ABI
}

/*
Waits for the receipt and returns the deployed contract, bound to the address
reported in the receipt.
*/
func (self DeploymentTx) Contract(ctx context.Context) (Contract, error) {
	receipt, err := self.Receipt(ctx)
	if err != nil {
		return Contract{}, err
	}
	if receipt.ContractAddress == ZeroAddress {
		return Contract{}, errors.Errorf("no contract address found at transaction %v", self.hash)
	}
	return NewContract(self.trans, self.abi, receipt.ContractAddress, self.poller), nil
}
