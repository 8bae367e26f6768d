package ethanol

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

/*
Decoded contract event. "Values" maps ABI parameter names to Go values as
produced by the ABI decoder: integers wider than 64 bits are *big.Int,
addresses are "common.Address". Indexed parameters of dynamic types (strings,
arrays) are only available as their hash.
*/
type ContractEvent struct {
	Name   string
	Values map[string]interface{}
	Log    LogEntry
}

/*
Decodes a log entry using the contract's ABI. Fails for anonymous events and
for events the ABI doesn't declare.
*/
func (self Contract) DecodeLog(log LogEntry) (ContractEvent, error) {
	if len(log.Topics) == 0 {
		return ContractEvent{}, errors.Errorf("log %v/%d has no topics", log.TransactionHash, log.LogIndex)
	}

	def, err := self.Abi.EventByID(log.Topics[0].Common())
	if err != nil {
		return ContractEvent{}, errors.WithStack(err)
	}

	values := map[string]interface{}{}
	err = def.Inputs.UnpackIntoMap(values, log.Data)
	if err != nil {
		return ContractEvent{}, errors.Wrapf(err, "failed to decode data of event %q", def.Name)
	}

	var indexed abi.Arguments
	for _, arg := range def.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	topics := make([]gethcommon.Hash, 0, len(log.Topics)-1)
	for _, topic := range log.Topics[1:] {
		topics = append(topics, topic.Common())
	}
	err = abi.ParseTopicsIntoMap(values, indexed, topics)
	if err != nil {
		return ContractEvent{}, errors.Wrapf(err, "failed to decode topics of event %q", def.Name)
	}

	return ContractEvent{Name: def.Name, Values: values, Log: log}, nil
}

func (self Contract) decodeLogs(logs []LogEntry) ([]ContractEvent, error) {
	out := make([]ContractEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		event, err := self.DecodeLog(log)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}
