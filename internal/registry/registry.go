// Package registry constructs curve pools and indexes them by asset pair and
// curve parameters.
package registry

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"curvePool/internal/ledger"
	"curvePool/internal/metrics"
	"curvePool/internal/pool"
)

var ErrPairExists = errors.New("pair exists")

// DefaultInitCodeHash stands in for the pool creation code hash when none is
// configured.
var DefaultInitCodeHash = crypto.Keccak256Hash([]byte("curvePool/pool"))

// Key identifies a pool: the unordered asset pair plus curve parameters.
type Key struct {
	Token0         common.Address
	Token1         common.Address
	SlopeNumerator uint32
	Exponent       uint8
	FeeRate        uint8
}

// NewKey orders the pair so that either token order yields the same key.
func NewKey(tokenA, tokenB common.Address, slopeNumerator uint32, n, feeRate uint8) Key {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return Key{Token0: tokenA, Token1: tokenB, SlopeNumerator: slopeNumerator, Exponent: n, FeeRate: feeRate}
}

// Salt is keccak256(token0 ++ token1 ++ uint32 slope ++ uint32 n ++ uint32 fee).
func (k Key) Salt() common.Hash {
	buf := make([]byte, 0, 2*common.AddressLength+12)
	buf = append(buf, k.Token0.Bytes()...)
	buf = append(buf, k.Token1.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, k.SlopeNumerator)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.Exponent))
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.FeeRate))
	return crypto.Keccak256Hash(buf)
}

// PoolAddress derives the CREATE2-style address of the pool for key.
func PoolAddress(registry common.Address, initCodeHash common.Hash, key Key) common.Address {
	return crypto.CreateAddress2(registry, key.Salt(), initCodeHash.Bytes())
}

// Config holds the registry identity and the platform fee sink handed to
// every pool it constructs.
type Config struct {
	Address      common.Address
	Platform     common.Address
	InitCodeHash common.Hash
}

type Registry struct {
	cfg     Config
	ledger  ledger.Ledger
	sink    pool.EventSink
	metrics *metrics.Pool
	logger  *zap.Logger

	mu    sync.RWMutex
	pools map[Key]*pool.Pool
	all   []*pool.Pool
}

func New(cfg Config, l ledger.Ledger, sink pool.EventSink, m *metrics.Pool, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitCodeHash == (common.Hash{}) {
		cfg.InitCodeHash = DefaultInitCodeHash
	}
	return &Registry{
		cfg:     cfg,
		ledger:  l,
		sink:    sink,
		metrics: m,
		logger:  logger,
		pools:   make(map[Key]*pool.Pool),
	}
}

func (r *Registry) Address() common.Address { return r.cfg.Address }

// Construct creates, initializes and registers a pool. A pool whose
// parameters fail validation is not registered.
func (r *Registry) Construct(ctx context.Context, baseAsset, quoteAsset, router, owner common.Address, slopeNumerator uint32, n, feeRate uint8) (*pool.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if baseAsset == quoteAsset {
		return nil, pool.ErrIdenticalAssets
	}
	if baseAsset == (common.Address{}) || quoteAsset == (common.Address{}) {
		return nil, pool.ErrZeroAddress
	}
	key := NewKey(baseAsset, quoteAsset, slopeNumerator, n, feeRate)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[key]; ok {
		return nil, fmt.Errorf("%w: %s/%s %d/%d/%d", ErrPairExists, key.Token0.Hex(), key.Token1.Hex(), slopeNumerator, n, feeRate)
	}

	addr := PoolAddress(r.cfg.Address, r.cfg.InitCodeHash, key)
	p := pool.New(pool.Config{
		Address:  addr,
		Registry: r.cfg.Address,
		Platform: r.cfg.Platform,
	}, r.ledger, r.sink, r.metrics, r.logger)
	err := p.Initialize(r.cfg.Address, pool.Params{
		Router:         router,
		BaseAsset:      baseAsset,
		QuoteAsset:     quoteAsset,
		Owner:          owner,
		SlopeNumerator: slopeNumerator,
		Exponent:       n,
		FeeRate:        feeRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize pool: %w", err)
	}

	r.pools[key] = p
	r.all = append(r.all, p)
	r.metrics.PoolCreated()
	r.logger.Info("pool created",
		zap.Stringer("pool", addr),
		zap.Stringer("base", baseAsset),
		zap.Stringer("quote", quoteAsset),
		zap.Uint32("slope_numerator", slopeNumerator),
		zap.Uint8("exponent", n),
		zap.Uint8("fee_rate", feeRate),
	)
	return p, nil
}

// Lookup finds a pool by pair and parameters in either token order.
func (r *Registry) Lookup(tokenA, tokenB common.Address, slopeNumerator uint32, n, feeRate uint8) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[NewKey(tokenA, tokenB, slopeNumerator, n, feeRate)]
	return p, ok
}

// ByAddress finds a pool by its derived address.
func (r *Registry) ByAddress(addr common.Address) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.all {
		if p.Address() == addr {
			return p, true
		}
	}
	return nil, false
}

// AllPools returns the pools in construction order.
func (r *Registry) AllPools() []*pool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pool.Pool, len(r.all))
	copy(out, r.all)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}
