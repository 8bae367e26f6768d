package ethanol

import (
	"fmt"

	"github.com/pkg/errors"
)

/*
Returned when the node has no record of the requested transaction. This is
reported immediately: a hash that isn't known to the node is never waited on.
*/
type TxNotFoundError struct {
	Hash Hash
}

// Implements "error".
func (self TxNotFoundError) Error() string {
	return fmt.Sprintf("unknown transaction %v", self.Hash)
}

/*
Returned when a transaction was mined but reverted. Carries the receipt so
callers can inspect gas usage and logs, and the human-readable description
given when the transaction was sent.
*/
type TxFailedError struct {
	Hash    Hash
	Desc    string
	Receipt TxReceipt
}

// Implements "error".
func (self TxFailedError) Error() string {
	if self.Desc == "" {
		return fmt.Sprintf("transaction %v failed", self.Hash)
	}
	return fmt.Sprintf("transaction %v failed: %v", self.Hash, self.Desc)
}

// True if the error or any of its causes is a TxNotFoundError.
func IsTxNotFound(err error) bool {
	var target TxNotFoundError
	return errors.As(err, &target)
}

// True if the error or any of its causes is a TxFailedError.
func IsTxFailed(err error) bool {
	var target TxFailedError
	return errors.As(err, &target)
}
