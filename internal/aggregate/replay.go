package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"curvePool/internal/curve"
	"curvePool/internal/fee"
	"curvePool/internal/model"
	"curvePool/internal/pool"
)

// Trade is a swap resolved against the pool's assets and fee policy.
type Trade struct {
	Direction   string
	BaseAmount  *uint256.Int
	QuoteAmount *uint256.Int
	// Split is the fee split of the input amount; it is in base for sells
	// and in quote for buys.
	Split fee.Split
}

type amounts struct {
	Base  *uint256.Int
	Quote *uint256.Int
}

func zeroAmounts() amounts {
	return amounts{Base: new(uint256.Int), Quote: new(uint256.Int)}
}

func (a amounts) model() model.Amounts {
	return model.Amounts{Base: a.Base.Dec(), Quote: a.Quote.Dec()}
}

// PoolState replays a pool's events to track supply, reserves and unswept
// fees without reading chain state.
type PoolState struct {
	Meta      model.PoolMeta
	Deposited bool

	Supply       *uint256.Int
	BaseReserve  *uint256.Int
	QuoteReserve *uint256.Int
	PlatformFees amounts
	OwnerFees    amounts

	base     common.Address
	quote    common.Address
	platform common.Address
	curve    curve.Curve
	fees     fee.Policy
	err      error
}

// NewPoolState prepares replay for a pool. platform, when non-zero, is the
// sender of platform fee sweeps; otherwise sweeps are attributed by amount.
func NewPoolState(meta model.PoolMeta, platform common.Address) *PoolState {
	st := &PoolState{
		Meta:         meta,
		Supply:       new(uint256.Int),
		BaseReserve:  new(uint256.Int),
		QuoteReserve: new(uint256.Int),
		PlatformFees: zeroAmounts(),
		OwnerFees:    zeroAmounts(),
		base:         common.HexToAddress(meta.BaseAsset),
		quote:        common.HexToAddress(meta.QuoteAsset),
		platform:     platform,
	}
	c, err := curve.New(meta.SlopeNumerator, meta.Exponent)
	if err != nil {
		st.err = fmt.Errorf("pool meta: %w", err)
		return st
	}
	policy, err := fee.NewPolicy(meta.FeeRate)
	if err != nil {
		st.err = fmt.Errorf("pool meta: %w", err)
		return st
	}
	st.curve = c
	st.fees = policy
	return st
}

// Price is the spot price at the replayed supply, WAD scaled, or nil before
// the deposit.
func (s *PoolState) Price() *big.Int {
	if s.err != nil || !s.Deposited {
		return nil
	}
	price, err := s.curve.Price(s.Supply)
	if err != nil {
		return nil
	}
	return price.ToBig()
}

// Apply folds one event into the state. Swaps return the resolved trade.
func (s *PoolState) Apply(record model.TypedEventRecord) (*Trade, error) {
	if s.err != nil {
		return nil, s.err
	}

	switch strings.ToLower(record.EventName) {
	case "deposit":
		var ev model.DepositEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return nil, fmt.Errorf("decode deposit: %w", err)
		}
		return nil, s.applyDeposit(ev)
	case "swap":
		var ev model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return nil, fmt.Errorf("decode swap: %w", err)
		}
		return s.applySwap(ev)
	case "withdraw":
		var ev model.WithdrawEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return nil, fmt.Errorf("decode withdraw: %w", err)
		}
		return nil, s.applyWithdraw(ev)
	case "withdrawfees":
		var ev model.WithdrawFeesEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return nil, fmt.Errorf("decode withdraw fees: %w", err)
		}
		return nil, s.applyWithdrawFees(ev)
	default:
		return nil, nil
	}
}

func (s *PoolState) applyDeposit(ev model.DepositEventData) error {
	baseReserve, err := parseAmount(ev.BaseReserve)
	if err != nil {
		return err
	}
	quoteReserve, err := parseAmount(ev.QuoteReserve)
	if err != nil {
		return err
	}
	baseOut, err := parseAmount(ev.BaseOut)
	if err != nil {
		return err
	}
	s.Deposited = true
	s.Supply = baseOut
	s.BaseReserve = baseReserve
	s.QuoteReserve = quoteReserve
	return nil
}

func (s *PoolState) applySwap(ev model.SwapEventData) (*Trade, error) {
	if !s.Deposited {
		return nil, fmt.Errorf("swap before deposit")
	}
	amountIn, err := parseAmount(ev.AmountIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := parseAmount(ev.AmountOut)
	if err != nil {
		return nil, err
	}
	assetIn := common.HexToAddress(ev.AssetIn)
	assetOut := common.HexToAddress(ev.AssetOut)

	split := s.fees.Apply(amountIn)
	switch {
	case assetIn == s.quote && assetOut == s.base:
		if s.BaseReserve.Lt(amountOut) {
			return nil, fmt.Errorf("buy of %s exceeds base reserve %s", amountOut.Dec(), s.BaseReserve.Dec())
		}
		s.Supply.Add(s.Supply, amountOut)
		s.BaseReserve.Sub(s.BaseReserve, amountOut)
		s.QuoteReserve.Add(s.QuoteReserve, split.Net)
		s.PlatformFees.Quote.Add(s.PlatformFees.Quote, split.Platform)
		s.OwnerFees.Quote.Add(s.OwnerFees.Quote, split.Owner)
		return &Trade{Direction: pool.DirectionBuy, BaseAmount: amountOut, QuoteAmount: amountIn, Split: split}, nil
	case assetIn == s.base && assetOut == s.quote:
		if s.Supply.Lt(split.Net) {
			return nil, fmt.Errorf("sell of %s exceeds supply %s", split.Net.Dec(), s.Supply.Dec())
		}
		if s.QuoteReserve.Lt(amountOut) {
			return nil, fmt.Errorf("sell for %s exceeds quote reserve %s", amountOut.Dec(), s.QuoteReserve.Dec())
		}
		s.Supply.Sub(s.Supply, split.Net)
		s.BaseReserve.Add(s.BaseReserve, split.Net)
		s.QuoteReserve.Sub(s.QuoteReserve, amountOut)
		s.PlatformFees.Base.Add(s.PlatformFees.Base, split.Platform)
		s.OwnerFees.Base.Add(s.OwnerFees.Base, split.Owner)
		return &Trade{Direction: pool.DirectionSell, BaseAmount: amountIn, QuoteAmount: amountOut, Split: split}, nil
	default:
		return nil, fmt.Errorf("swap assets %s -> %s do not match pool", ev.AssetIn, ev.AssetOut)
	}
}

func (s *PoolState) applyWithdraw(ev model.WithdrawEventData) error {
	baseAmount, err := parseAmount(ev.BaseAmount)
	if err != nil {
		return err
	}
	quoteAmount, err := parseAmount(ev.QuoteAmount)
	if err != nil {
		return err
	}
	if s.BaseReserve.Lt(baseAmount) || s.QuoteReserve.Lt(quoteAmount) {
		return fmt.Errorf("withdraw of %s/%s exceeds reserves %s/%s",
			baseAmount.Dec(), quoteAmount.Dec(), s.BaseReserve.Dec(), s.QuoteReserve.Dec())
	}
	s.BaseReserve.Sub(s.BaseReserve, baseAmount)
	s.QuoteReserve.Sub(s.QuoteReserve, quoteAmount)
	return nil
}

func (s *PoolState) applyWithdrawFees(ev model.WithdrawFeesEventData) error {
	baseAmount, err := parseAmount(ev.BaseAmount)
	if err != nil {
		return err
	}
	quoteAmount, err := parseAmount(ev.QuoteAmount)
	if err != nil {
		return err
	}

	platform := baseAmount.Eq(s.PlatformFees.Base) && quoteAmount.Eq(s.PlatformFees.Quote)
	if s.platform != (common.Address{}) {
		platform = common.HexToAddress(ev.Sender) == s.platform
	}
	if platform {
		s.PlatformFees = zeroAmounts()
	} else {
		s.OwnerFees = zeroAmounts()
	}
	return nil
}

// Snapshot renders the replayed state as a pool record.
func (s *PoolState) Snapshot(chainID uint64, address string) model.Pool {
	out := model.Pool{
		ChainID:        chainID,
		Address:        address,
		BaseAsset:      s.Meta.BaseAsset,
		QuoteAsset:     s.Meta.QuoteAsset,
		SlopeNumerator: s.Meta.SlopeNumerator,
		Exponent:       s.Meta.Exponent,
		FeeRate:        s.Meta.FeeRate,
		Initialized:    true,
		Supply:         s.Supply.Dec(),
		BaseReserve:    s.BaseReserve.Dec(),
		QuoteReserve:   s.QuoteReserve.Dec(),
		PlatformFees:   s.PlatformFees.model(),
		OwnerFees:      s.OwnerFees.model(),
	}
	if price := s.Price(); price != nil {
		out.Price = price.String()
	}
	return out
}
