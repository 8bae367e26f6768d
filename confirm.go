package ethanol

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Default delay between attempts of the confirmation poller.
const DefaultPollInterval = time.Second

/*
Turns a transaction hash into a definitive outcome: confirmed, failed, or not
found. Safe for concurrent use; a single Poller may serve any number of
transactions.

The zero value is usable: it polls once per "DefaultPollInterval", waits
forever, and doesn't log. Waiting is bounded by the caller's context and by
"Timeout", when set. There is no retry ceiling and no backoff growth; a
pending transaction is polled at a constant rate until it's mined.
*/
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   zerolog.Logger
}

func (self Poller) interval() time.Duration {
	if self.Interval <= 0 {
		return DefaultPollInterval
	}
	return self.Interval
}

func (self Poller) logger() zerolog.Logger {
	return self.Logger.With().Str("component", "poller").Logger()
}

func (self Poller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if self.Timeout > 0 {
		return context.WithTimeout(ctx, self.Timeout)
	}
	return context.WithCancel(ctx)
}

/*
Waits until the transaction is included in a block, returning its record.
Fails immediately with TxNotFoundError when the node doesn't know the hash.
Transport errors abort the wait and are returned wrapped; they are never
retried.
*/
func (self Poller) Mined(ctx context.Context, trans Trans, hash Hash) (Transaction, error) {
	ctx, cancel := self.withTimeout(ctx)
	defer cancel()
	return self.mined(ctx, trans, hash)
}

func (self Poller) mined(ctx context.Context, trans Trans, hash Hash) (Transaction, error) {
	log := self.logger()

	for attempt := 1; ; attempt++ {
		tx, err := EthGetTxByHash(ctx, trans, hash)
		if err != nil {
			return Transaction{}, err
		}
		if tx == nil {
			return Transaction{}, errors.WithStack(TxNotFoundError{Hash: hash})
		}
		if tx.IsMined() {
			return *tx, nil
		}

		log.Debug().Stringer("hash", hash).Int("attempt", attempt).Msg("transaction pending")
		err = sleepCtx(ctx, self.interval())
		if err != nil {
			return Transaction{}, errors.Wrapf(err, "waiting for transaction %v to be mined", hash)
		}
	}
}

/*
Waits until the node reports a receipt for a transaction that's already
known to be mined. Doesn't classify the receipt.
*/
func (self Poller) Receipt(ctx context.Context, trans Trans, hash Hash) (TxReceipt, error) {
	ctx, cancel := self.withTimeout(ctx)
	defer cancel()
	return self.receipt(ctx, trans, hash)
}

func (self Poller) receipt(ctx context.Context, trans Trans, hash Hash) (TxReceipt, error) {
	log := self.logger()

	for attempt := 1; ; attempt++ {
		receipt, err := EthGetTxReceipt(ctx, trans, hash)
		if err != nil {
			return TxReceipt{}, err
		}
		if receipt != nil {
			return *receipt, nil
		}

		log.Debug().Stringer("hash", hash).Int("attempt", attempt).Msg("receipt unavailable")
		err = sleepCtx(ctx, self.interval())
		if err != nil {
			return TxReceipt{}, errors.Wrapf(err, "waiting for receipt of transaction %v", hash)
		}
	}
}

/*
Runs the full confirmation sequence: waits until mined, waits for the receipt,
then classifies it. Returns the receipt on success. A reverted transaction
yields TxFailedError carrying the receipt and "desc"; an unknown hash yields
TxNotFoundError. Each call polls afresh; nothing is cached.
*/
func (self Poller) Confirm(ctx context.Context, trans Trans, hash Hash, desc string) (TxReceipt, error) {
	ctx, cancel := self.withTimeout(ctx)
	defer cancel()

	tx, err := self.mined(ctx, trans, hash)
	if err != nil {
		return TxReceipt{}, err
	}

	receipt, err := self.receipt(ctx, trans, hash)
	if err != nil {
		return TxReceipt{}, err
	}

	if !ClassifyReceipt(tx, receipt) {
		log := self.logger()
		log.Debug().Stringer("hash", hash).Str("desc", desc).Msg("transaction failed")
		return receipt, errors.WithStack(TxFailedError{Hash: hash, Desc: desc, Receipt: receipt})
	}
	return receipt, nil
}

/*
Reports whether a mined transaction succeeded.

When the receipt carries a status field, zero means failure and anything else
means success. Receipts from chains that predate status codes are judged by
gas: a transaction that used all of its gas allowance is assumed to have
reverted. This heuristic is why gas limits filled in by this package include
"GasPadding".
*/
func ClassifyReceipt(tx Transaction, receipt TxReceipt) bool {
	if receipt.Status != nil {
		return receipt.Status.Big().Sign() != 0
	}
	if receipt.GasUsed == nil || tx.Gas == nil {
		return false
	}
	return receipt.GasUsed.Big().Cmp(tx.Gas.Big()) < 0
}
