package ethanol

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type fakeHandler func(params []interface{}) (interface{}, error)

/*
In-memory transport scripted per RPC method. Results go through a JSON
round trip, the same way real transports decode them, so "nil" arrives as
"null".
*/
type fakeTrans struct {
	lock     sync.Mutex
	handlers map[string]fakeHandler
	calls    map[string]int
	params   map[string][][]interface{}
}

func newFakeTrans() *fakeTrans {
	return &fakeTrans{
		handlers: map[string]fakeHandler{},
		calls:    map[string]int{},
		params:   map[string][][]interface{}{},
	}
}

func (self *fakeTrans) on(method string, handler fakeHandler) *fakeTrans {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.handlers[method] = handler
	return self
}

// Always responds with the same value.
func (self *fakeTrans) reply(method string, val interface{}) *fakeTrans {
	return self.on(method, func([]interface{}) (interface{}, error) { return val, nil })
}

// Responds with the given values in order, repeating the last one.
func (self *fakeTrans) sequence(method string, vals ...interface{}) *fakeTrans {
	var lock sync.Mutex
	index := 0
	return self.on(method, func([]interface{}) (interface{}, error) {
		lock.Lock()
		defer lock.Unlock()
		val := vals[index]
		if index < len(vals)-1 {
			index++
		}
		return val, nil
	})
}

func (self *fakeTrans) count(method string) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.calls[method]
}

func (self *fakeTrans) lastParams(method string) []interface{} {
	self.lock.Lock()
	defer self.lock.Unlock()
	all := self.params[method]
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (self *fakeTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	self.lock.Lock()
	handler := self.handlers[method]
	self.calls[method]++
	self.params[method] = append(self.params[method], params)
	self.lock.Unlock()

	if handler == nil {
		return errors.Errorf("unexpected RPC method %q", method)
	}

	val, err := handler(params)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(val)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(json.Unmarshal(encoded, out))
}

func (self *fakeTrans) Subscribe(_ context.Context, out chan []byte, _ ...interface{}) error {
	close(out)
	return errors.New("fake transport doesn't support streaming")
}

func (self *fakeTrans) Connected() chan struct{} { return alwaysConnected }

func testHash(seed byte) Hash {
	var out Hash
	out[0] = 0xaa
	out[31] = seed
	return out
}

func testAddress(seed byte) Address {
	var out Address
	out[0] = 0xbb
	out[19] = seed
	return out
}

func pendingTx(hash Hash, gas int64) Transaction {
	return Transaction{Hash: hash, Gas: NewHexInt(gas)}
}

func minedTx(hash Hash, gas int64) Transaction {
	tx := pendingTx(hash, gas)
	tx.BlockNumber = NewHexInt(7)
	tx.BlockHash = testHash(0xb7)
	return tx
}

func receiptWithStatus(hash Hash, status int64, gasUsed int64) TxReceipt {
	return TxReceipt{
		TransactionHash: hash,
		BlockNumber:     NewHexInt(7),
		BlockHash:       testHash(0xb7),
		GasUsed:         NewHexInt(gasUsed),
		Status:          NewHexInt(status),
	}
}

// Receipt from a chain that doesn't report status codes.
func receiptWithoutStatus(hash Hash, gasUsed int64) TxReceipt {
	receipt := receiptWithStatus(hash, 0, gasUsed)
	receipt.Status = nil
	return receipt
}

func testPoller(t *testing.T) Poller {
	return Poller{
		Interval: time.Millisecond,
		Logger:   zerolog.New(zerolog.NewTestWriter(t)),
	}
}

func bigInt(val int64) *big.Int { return big.NewInt(val) }
