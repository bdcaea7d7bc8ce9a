package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"curvePool/internal/model"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20SymbolBytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error

	erc20SymbolBytes32ABI     abi.ABI
	erc20SymbolBytes32ABIOnce sync.Once
	erc20SymbolBytes32ABIErr  error
)

// ERC20ABI returns the parsed subset of the ERC20 ABI used for balance reads.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

func erc20SymbolBytes32() (abi.ABI, error) {
	erc20SymbolBytes32ABIOnce.Do(func() {
		erc20SymbolBytes32ABI, erc20SymbolBytes32ABIErr = abi.JSON(strings.NewReader(erc20SymbolBytes32ABIJSON))
	})
	return erc20SymbolBytes32ABI, erc20SymbolBytes32ABIErr
}

// Call packs method with args, runs eth_call against contract and unpacks
// the result. A nil block reads the latest state.
func (c *Client) Call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// TokenBalance returns holder's balance of token.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := c.Call(ctx, token, parsed, "balanceOf", block, holder)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

// TokenDecimals returns the token's decimals.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return 0, err
	}
	values, err := c.Call(ctx, token, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	return decimals, nil
}

// TokenSymbol returns the token symbol, accepting string and bytes32 encodings.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return "", err
	}
	if values, err := c.Call(ctx, token, parsed, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			return symbol, nil
		}
	}

	legacy, err := erc20SymbolBytes32()
	if err != nil {
		return "", err
	}
	values, err := c.Call(ctx, token, legacy, "symbol", nil)
	if err != nil {
		return "", err
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("symbol unexpected type %T", values[0])
	}
	return string(bytes.TrimRight(raw[:], "\x00")), nil
}

// FetchTokenBalance reads balance, decimals and symbol for a holder. Symbol
// is best effort.
func (c *Client) FetchTokenBalance(ctx context.Context, token, holder common.Address, block uint64) (model.TokenBalance, error) {
	out := model.TokenBalance{Token: token.Hex(), Holder: holder.Hex(), Block: block}

	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}
	bal, err := c.TokenBalance(ctx, token, holder, blockPtr)
	if err != nil {
		return out, err
	}
	out.Balance = bal.String()

	decimals, err := c.TokenDecimals(ctx, token)
	if err != nil {
		return out, err
	}
	out.Decimals = decimals

	if symbol, err := c.TokenSymbol(ctx, token); err == nil {
		out.Symbol = symbol
	}
	return out, nil
}
