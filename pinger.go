package ethanol

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultPingInterval = time.Second

/*
Keeps a "geth --dev" chain producing blocks. Such chains only mine when there
are pending transactions, so a transaction waiting on the next block would
wait forever on an otherwise idle chain. The pinger sends a zero-value
transfer from the account to itself every "Interval".
*/
type Pinger struct {
	Trans    Trans
	Sender   Sender
	Interval time.Duration
	Logger   zerolog.Logger
}

/*
Pings until the context is canceled. Failed pings are logged and don't stop
the loop.
*/
func (self Pinger) Run(ctx context.Context) {
	interval := self.Interval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	log := self.Logger.With().Str("component", "pinger").Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		addr := self.Sender.Address()
		hash, err := self.Sender.Send(ctx, self.Trans, TxMsg{To: addr, Value: NewHexInt(0)})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("ping failed")
			continue
		}
		log.Trace().Stringer("hash", hash).Msg("ping")
	}
}
