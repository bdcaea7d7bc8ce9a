package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"curvePool/internal/fixedpoint"
	"curvePool/internal/ledger"
)

const (
	DirectionBuy  = "buy"  // quote in, base out
	DirectionSell = "sell" // base in, quote out
)

// Swap trades amountIn of assetIn, already sent to the pool, for amountOut
// of assetOut paid to to.
func (p *Pool) Swap(ctx context.Context, caller, assetIn, assetOut common.Address, amountIn, amountOut *uint256.Int, to common.Address) error {
	defer p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return p.fail("swap", ErrUninitializedSwap)
	}
	buy := assetIn == p.params.QuoteAsset && assetOut == p.params.BaseAsset
	sell := assetIn == p.params.BaseAsset && assetOut == p.params.QuoteAsset
	if !buy && !sell {
		return p.fail("swap", ErrIncorrectTokens)
	}
	if to == p.params.BaseAsset || to == p.params.QuoteAsset {
		return p.fail("swap", ErrInvalidTo)
	}
	if amountIn == nil || amountOut == nil || amountIn.IsZero() || amountOut.IsZero() {
		return p.fail("swap", ErrInsufficientIOAmount)
	}

	observed, err := p.observe(ctx)
	if err != nil {
		return p.fail("swap", err)
	}
	booked := p.booked()
	unbooked := new(uint256.Int).Sub(observed.Quote, booked.Quote)
	if sell {
		unbooked.Sub(observed.Base, booked.Base)
	}
	if unbooked.Lt(amountIn) {
		return p.fail("swap", fmt.Errorf("%w: received %s, declared %s", ErrIncorrectInputAmount, unbooked.Dec(), amountIn.Dec()))
	}

	split := p.fees.Apply(amountIn)
	next := p.st.clone()
	direction := DirectionBuy
	if buy {
		limit, err := p.curve.BaseOutForQuoteIn(next.supply, split.Net)
		if err != nil {
			return p.fail("swap", err)
		}
		if amountOut.Gt(limit) {
			return p.fail("swap", fmt.Errorf("%w: requested %s, curve allows %s", ErrInvalidBaseOutput, amountOut.Dec(), limit.Dec()))
		}
		if amountOut.Gt(next.reserves.Base) {
			return p.fail("swap", fmt.Errorf("%w: requested %s base, reserve %s", ErrInsufficientReserve, amountOut.Dec(), next.reserves.Base.Dec()))
		}
		if err := addInto(next.supply, amountOut); err != nil {
			return p.fail("swap", err)
		}
		if err := addInto(next.reserves.Quote, split.Net); err != nil {
			return p.fail("swap", err)
		}
		next.reserves.Base.Sub(next.reserves.Base, amountOut)
		next.platformFees.Quote.Add(next.platformFees.Quote, split.Platform)
		next.ownerFees.Quote.Add(next.ownerFees.Quote, split.Owner)
	} else {
		direction = DirectionSell
		limit, err := p.curve.QuoteOutForBaseIn(next.supply, split.Net)
		if err != nil {
			return p.fail("swap", err)
		}
		if amountOut.Gt(limit) {
			return p.fail("swap", fmt.Errorf("%w: requested %s, curve allows %s", ErrInvalidQuoteOutput, amountOut.Dec(), limit.Dec()))
		}
		if amountOut.Gt(next.reserves.Quote) {
			return p.fail("swap", fmt.Errorf("%w: requested %s quote, reserve %s", ErrInsufficientReserve, amountOut.Dec(), next.reserves.Quote.Dec()))
		}
		next.supply.Sub(next.supply, split.Net)
		if err := addInto(next.reserves.Base, split.Net); err != nil {
			return p.fail("swap", err)
		}
		next.reserves.Quote.Sub(next.reserves.Quote, amountOut)
		next.platformFees.Base.Add(next.platformFees.Base, split.Platform)
		next.ownerFees.Base.Add(next.ownerFees.Base, split.Owner)
	}

	if err := p.send(ctx, ledger.Transfer{Asset: assetOut, To: to, Amount: amountOut}); err != nil {
		return p.fail("swap", err)
	}

	p.st = next
	p.metrics.Swap(direction)
	p.logger.Debug("swap",
		zap.String("direction", direction),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
		zap.String("supply", next.supply.Dec()),
	)
	p.emit(SwapEvent{
		Pool:      p.cfg.Address,
		Sender:    caller,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  new(uint256.Int).Set(amountIn),
		AmountOut: new(uint256.Int).Set(amountOut),
		To:        to,
	})
	return nil
}

func addInto(dst, v *uint256.Int) error {
	if _, overflow := dst.AddOverflow(dst, v); overflow {
		return fmt.Errorf("%w: amount overflows 256 bits", fixedpoint.ErrDomain)
	}
	return nil
}

// BasePrice is the spot price of one base token in quote, WAD scaled.
func (p *Pool) BasePrice() (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedBasePrice
	}
	return p.curve.Price(p.st.supply)
}

// QuotePrice is the spot price of one quote token in base, WAD scaled.
func (p *Pool) QuotePrice() (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedQuotePrice
	}
	return p.curve.InversePrice(p.st.supply)
}

// GetBaseOut is the most base a swap of quoteIn gross quote can take.
func (p *Pool) GetBaseOut(quoteIn *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedBaseOut
	}
	return p.curve.BaseOutForQuoteIn(p.st.supply, p.fees.Apply(quoteIn).Net)
}

// GetQuoteOut is the most quote a swap of baseIn gross base can take.
func (p *Pool) GetQuoteOut(baseIn *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedQuoteOut
	}
	return p.curve.QuoteOutForBaseIn(p.st.supply, p.fees.Apply(baseIn).Net)
}

// GetQuoteIn is the least gross quote that buys baseOut.
func (p *Pool) GetQuoteIn(baseOut *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedQuoteIn
	}
	net, err := p.curve.QuoteInForBaseOut(p.st.supply, baseOut)
	if err != nil {
		return nil, err
	}
	return p.fees.GrossFor(net)
}

// GetBaseIn is the least gross base that sells for quoteOut.
func (p *Pool) GetBaseIn(quoteOut *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrUninitializedBaseIn
	}
	net, err := p.curve.BaseInForQuoteOut(p.st.supply, quoteOut)
	if err != nil {
		return nil, err
	}
	return p.fees.GrossFor(net)
}
