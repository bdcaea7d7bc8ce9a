package events

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"curvePool/internal/model"
	"curvePool/internal/pool"
)

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

func (c *PoolMetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// MetaFromSnapshot builds pool metadata from an in-process pool.
func MetaFromSnapshot(snap pool.Snapshot) model.PoolMeta {
	return model.PoolMeta{
		BaseAsset:      snap.BaseAsset.Hex(),
		QuoteAsset:     snap.QuoteAsset.Hex(),
		SlopeNumerator: snap.SlopeNumerator,
		Exponent:       snap.Exponent,
		FeeRate:        snap.FeeRate,
	}
}

// FetchPoolMeta loads the immutable curve parameters of a pool.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, addr common.Address) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	poolABI, err := PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	call := func(method string) (interface{}, error) {
		values, err := caller.Call(ctx, addr, poolABI, method, nil)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s returned no values", method)
		}
		return values[0], nil
	}

	value, err := call("baseToken")
	if err != nil {
		return model.PoolMeta{}, err
	}
	base, err := asAddress(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("baseToken: %w", err)
	}

	value, err = call("quoteToken")
	if err != nil {
		return model.PoolMeta{}, err
	}
	quote, err := asAddress(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("quoteToken: %w", err)
	}

	value, err = call("slopeNumerator")
	if err != nil {
		return model.PoolMeta{}, err
	}
	slope, err := asBigInt(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("slopeNumerator: %w", err)
	}
	if !slope.IsUint64() || slope.Uint64() > 1<<32-1 {
		return model.PoolMeta{}, fmt.Errorf("slopeNumerator overflow: %s", slope.String())
	}

	value, err = call("n")
	if err != nil {
		return model.PoolMeta{}, err
	}
	n, err := asUint8(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("n: %w", err)
	}

	value, err = call("fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	feeRate, err := asUint8(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}

	return model.PoolMeta{
		BaseAsset:      base.Hex(),
		QuoteAsset:     quote.Hex(),
		SlopeNumerator: uint32(slope.Uint64()),
		Exponent:       n,
		FeeRate:        feeRate,
	}, nil
}

// FetchPoolReserves reads getReserves at a block height; zero reads latest.
func FetchPoolReserves(ctx context.Context, caller ContractCaller, addr common.Address, blockNumber uint64) (model.PoolReserves, error) {
	if caller == nil {
		return model.PoolReserves{}, fmt.Errorf("chain client is nil")
	}
	poolABI, err := PoolABI()
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}
	values, err := caller.Call(ctx, addr, poolABI, "getReserves", blockPtr)
	if err != nil {
		return model.PoolReserves{}, err
	}
	if len(values) != 2 {
		return model.PoolReserves{}, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	base, err := asBigInt(values[0])
	if err != nil {
		return model.PoolReserves{}, err
	}
	quote, err := asBigInt(values[1])
	if err != nil {
		return model.PoolReserves{}, err
	}
	return model.PoolReserves{Base: base.String(), Quote: quote.String()}, nil
}

// FetchPoolSupply reads the pool's curve supply at a block height; zero
// reads latest.
func FetchPoolSupply(ctx context.Context, caller ContractCaller, addr common.Address, blockNumber uint64) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	poolABI, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}
	values, err := caller.Call(ctx, addr, poolABI, "s", blockPtr)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected s values: %d", len(values))
	}
	return asBigInt(values[0])
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
