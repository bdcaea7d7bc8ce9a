// Package quote answers curve and fee queries for a pool position without a
// running pool, either from given parameters or from a deployed pool.
package quote

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"curvePool/internal/curve"
	"curvePool/internal/events"
	"curvePool/internal/fee"
	"curvePool/internal/fixedpoint"
	"curvePool/internal/model"
)

// Request fixes a curve position. Supply wins over QuoteReserve when both
// are set. Amount, when set, is priced in every direction.
type Request struct {
	SlopeNumerator uint32
	Exponent       uint8
	FeeRate        uint8
	Supply         *uint256.Int
	QuoteReserve   *uint256.Int
	Amount         *uint256.Int
}

// Split is a fee split rendered as decimal strings.
type Split struct {
	Net      string `json:"net"`
	Platform string `json:"platform"`
	Owner    string `json:"owner"`
}

// Result holds raw token units; prices are WAD scaled.
type Result struct {
	Pool         string `json:"pool,omitempty"`
	Curve        string `json:"curve"`
	FeeRate      uint8  `json:"fee_rate"`
	Supply       string `json:"supply"`
	QuoteReserve string `json:"quote_reserve"`
	// QuoteToken is the pool's quote token balance, fee accruals included.
	QuoteToken *model.TokenBalance `json:"quote_token,omitempty"`
	BasePrice    string `json:"base_price"`
	QuotePrice   string `json:"quote_price,omitempty"`

	Amount   string `json:"amount,omitempty"`
	Fee      *Split `json:"fee,omitempty"`
	BaseOut  string `json:"base_out,omitempty"`
	QuoteOut string `json:"quote_out,omitempty"`
	QuoteIn  string `json:"quote_in,omitempty"`
	BaseIn   string `json:"base_in,omitempty"`
	// Errors holds per-query failures, such as selling more than the supply.
	Errors map[string]string `json:"errors,omitempty"`
}

// Compute evaluates the position. Parameter errors fail the call; a query
// the position cannot serve is reported in Result.Errors.
func Compute(req Request) (Result, error) {
	c, err := curve.New(req.SlopeNumerator, req.Exponent)
	if err != nil {
		return Result{}, err
	}
	policy, err := fee.NewPolicy(req.FeeRate)
	if err != nil {
		return Result{}, err
	}

	supply, reserve, err := position(c, req)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Curve:        c.String(),
		FeeRate:      req.FeeRate,
		Supply:       supply.Dec(),
		QuoteReserve: reserve.Dec(),
	}
	price, err := c.Price(supply)
	if err != nil {
		return Result{}, fmt.Errorf("price: %w", err)
	}
	res.BasePrice = price.Dec()
	if inv, err := c.InversePrice(supply); err == nil {
		res.QuotePrice = inv.Dec()
	} else {
		res.fail("quote_price", err)
	}

	if req.Amount == nil {
		return res, nil
	}
	amount := req.Amount
	split := policy.Apply(amount)
	res.Amount = amount.Dec()
	res.Fee = &Split{Net: split.Net.Dec(), Platform: split.Platform.Dec(), Owner: split.Owner.Dec()}

	if out, err := c.BaseOutForQuoteIn(supply, split.Net); err == nil {
		res.BaseOut = out.Dec()
	} else {
		res.fail("base_out", err)
	}
	if out, err := c.QuoteOutForBaseIn(supply, split.Net); err == nil {
		res.QuoteOut = out.Dec()
	} else {
		res.fail("quote_out", err)
	}
	if in, err := grossIn(policy, func() (*uint256.Int, error) { return c.QuoteInForBaseOut(supply, amount) }); err == nil {
		res.QuoteIn = in.Dec()
	} else {
		res.fail("quote_in", err)
	}
	if in, err := grossIn(policy, func() (*uint256.Int, error) { return c.BaseInForQuoteOut(supply, amount) }); err == nil {
		res.BaseIn = in.Dec()
	} else {
		res.fail("base_in", err)
	}
	return res, nil
}

// TokenReader reads ERC20 balances with token metadata. *chain.Client
// implements it.
type TokenReader interface {
	FetchTokenBalance(ctx context.Context, token, holder common.Address, block uint64) (model.TokenBalance, error)
}

// Live reads a deployed pool's parameters, supply and reserves at block
// (zero for latest) and computes the quote for amount. tokens, when set,
// adds the pool's quote token balance.
func Live(ctx context.Context, caller events.ContractCaller, tokens TokenReader, pool common.Address, block uint64, amount *uint256.Int) (Result, error) {
	meta, err := events.FetchPoolMeta(ctx, caller, pool)
	if err != nil {
		return Result{}, fmt.Errorf("fetch pool meta: %w", err)
	}
	rawSupply, err := events.FetchPoolSupply(ctx, caller, pool, block)
	if err != nil {
		return Result{}, fmt.Errorf("fetch supply: %w", err)
	}
	supply, err := fromBig(rawSupply)
	if err != nil {
		return Result{}, err
	}

	res, err := Compute(Request{
		SlopeNumerator: meta.SlopeNumerator,
		Exponent:       meta.Exponent,
		FeeRate:        meta.FeeRate,
		Supply:         supply,
		Amount:         amount,
	})
	if err != nil {
		return Result{}, err
	}
	res.Pool = pool.Hex()

	if reserves, err := events.FetchPoolReserves(ctx, caller, pool, block); err == nil {
		res.QuoteReserve = reserves.Quote
	} else {
		res.fail("quote_reserve", err)
	}
	if tokens != nil {
		bal, err := tokens.FetchTokenBalance(ctx, common.HexToAddress(meta.QuoteAsset), pool, block)
		if err != nil {
			res.fail("quote_token", err)
		} else {
			res.QuoteToken = &bal
		}
	}
	return res, nil
}

func position(c curve.Curve, req Request) (supply, reserve *uint256.Int, err error) {
	switch {
	case req.Supply != nil:
		supply = req.Supply
		reserve, err = c.ReserveAtSupply(supply, fixedpoint.RoundDown)
		if err != nil {
			return nil, nil, fmt.Errorf("reserve at supply: %w", err)
		}
	case req.QuoteReserve != nil:
		reserve = req.QuoteReserve
		supply, err = c.SupplyAtReserve(reserve, fixedpoint.RoundDown)
		if err != nil {
			return nil, nil, fmt.Errorf("supply at reserve: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("supply or quote reserve is required")
	}
	return supply, reserve, nil
}

func grossIn(policy fee.Policy, net func() (*uint256.Int, error)) (*uint256.Int, error) {
	n, err := net()
	if err != nil {
		return nil, err
	}
	return policy.GrossFor(n)
}

func (r *Result) fail(query string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[query] = err.Error()
}

func fromBig(v *big.Int) (*uint256.Int, error) {
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", v)
	}
	return out, nil
}
