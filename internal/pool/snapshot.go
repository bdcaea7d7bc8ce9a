package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshot is a point-in-time copy of a pool's state.
type Snapshot struct {
	Address        common.Address
	Registry       common.Address
	Platform       common.Address
	Router         common.Address
	Owner          common.Address
	BaseAsset      common.Address
	QuoteAsset     common.Address
	SlopeNumerator uint32
	Exponent       uint8
	FeeRate        uint8
	Initialized    bool
	Supply         *uint256.Int
	Reserves       Balances
	PlatformFees   Balances
	OwnerFees      Balances
}

// HasUnsweptFees reports whether any fee accrual is still held by the pool.
func (s Snapshot) HasUnsweptFees() bool {
	return !s.PlatformFees.isZero() || !s.OwnerFees.isZero()
}

func (p *Pool) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.st.clone()
	return Snapshot{
		Address:        p.cfg.Address,
		Registry:       p.cfg.Registry,
		Platform:       p.cfg.Platform,
		Router:         p.params.Router,
		Owner:          p.params.Owner,
		BaseAsset:      p.params.BaseAsset,
		QuoteAsset:     p.params.QuoteAsset,
		SlopeNumerator: p.params.SlopeNumerator,
		Exponent:       p.params.Exponent,
		FeeRate:        p.params.FeeRate,
		Initialized:    p.initialized,
		Supply:         st.supply,
		Reserves:       st.reserves,
		PlatformFees:   st.platformFees,
		OwnerFees:      st.ownerFees,
	}
}

// Reserves returns copies of the booked base and quote reserves.
func (p *Pool) Reserves() (base, quote *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.st.reserves.Base), new(uint256.Int).Set(p.st.reserves.Quote)
}

// Supply returns the net base released by the curve.
func (p *Pool) Supply() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.st.supply)
}

func (p *Pool) Params() Params {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

func (p *Pool) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}
