package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"curvePool/internal/events"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseTopic0 converts topic0 filters into hashes. An entry is either a
// 32-byte hex hash or a pool event name such as "Swap".
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	parsed, err := events.PoolABI()
	if err != nil {
		return nil, err
	}

	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "0x") {
			event, ok := lookupEvent(parsed.Events, input)
			if !ok {
				return nil, fmt.Errorf("unknown pool event: %s", input)
			}
			topics = append(topics, event)
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

func lookupEvent(byName map[string]abi.Event, name string) (common.Hash, bool) {
	for eventName, event := range byName {
		if strings.EqualFold(eventName, name) {
			return event.ID, true
		}
	}
	return common.Hash{}, false
}
