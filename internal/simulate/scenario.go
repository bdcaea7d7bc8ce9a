// Package simulate replays scripted pool activity over an in-memory ledger.
package simulate

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionTransfer             = "transfer"
	ActionDeposit              = "deposit"
	ActionSwap                 = "swap"
	ActionWithdraw             = "withdraw"
	ActionWithdrawPlatformFees = "withdraw_platform_fees"
	ActionWithdrawOwnerFees    = "withdraw_owner_fees"
	ActionSetOwner             = "set_owner"
)

// Scenario is a scripted run: named accounts, initial balances, pools and an
// ordered list of steps.
type Scenario struct {
	ChainID    uint64            `yaml:"chain_id"`
	Registry   string            `yaml:"registry"`
	Platform   string            `yaml:"platform"`
	StartBlock uint64            `yaml:"start_block"`
	StartTime  uint64            `yaml:"start_time"`
	BlockTime  uint64            `yaml:"block_time"`
	Accounts   map[string]string `yaml:"accounts"`
	Mints      []Mint            `yaml:"mints"`
	Pools      []PoolSpec        `yaml:"pools"`
	Steps      []Step            `yaml:"steps"`
}

type Mint struct {
	Asset  string `yaml:"asset"`
	Holder string `yaml:"holder"`
	Amount string `yaml:"amount"`
}

type PoolSpec struct {
	Name           string `yaml:"name"`
	Base           string `yaml:"base"`
	Quote          string `yaml:"quote"`
	Router         string `yaml:"router"`
	Owner          string `yaml:"owner"`
	SlopeNumerator uint32 `yaml:"slope_numerator"`
	Exponent       uint8  `yaml:"exponent"`
	FeeRate        uint8  `yaml:"fee_rate"`
}

// Step is one scenario action. Fields not used by the action are ignored.
// Account fields take an account name, a pool name or a hex address.
type Step struct {
	Action    string `yaml:"action"`
	Pool      string `yaml:"pool"`
	Caller    string `yaml:"caller"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Asset     string `yaml:"asset"`
	Amount    string `yaml:"amount"`
	AssetIn   string `yaml:"asset_in"`
	AssetOut  string `yaml:"asset_out"`
	AmountIn  string `yaml:"amount_in"`
	AmountOut string `yaml:"amount_out"`
	NewOwner  string `yaml:"new_owner"`
	// ExpectError makes the step pass only when it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Pools) == 0 {
		return fmt.Errorf("scenario has no pools")
	}
	names := make(map[string]struct{}, len(sc.Pools))
	for i, p := range sc.Pools {
		if p.Name == "" {
			return fmt.Errorf("pool %d: name is required", i)
		}
		if _, ok := sc.Accounts[p.Name]; ok {
			return fmt.Errorf("pool %s: name collides with an account", p.Name)
		}
		if _, ok := names[p.Name]; ok {
			return fmt.Errorf("pool %s: duplicate name", p.Name)
		}
		names[p.Name] = struct{}{}
	}
	for name, addr := range sc.Accounts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("account %s: invalid address %q", name, addr)
		}
	}
	for i, step := range sc.Steps {
		switch step.Action {
		case ActionTransfer, ActionDeposit, ActionSwap, ActionWithdraw,
			ActionWithdrawPlatformFees, ActionWithdrawOwnerFees, ActionSetOwner:
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
		if step.Action != ActionTransfer {
			if _, ok := names[step.Pool]; !ok {
				return fmt.Errorf("step %d: unknown pool %q", i, step.Pool)
			}
		}
	}
	return nil
}

// ParseAmount reads a base-10 integer amount. A trailing exponent scales it,
// so "50e18" is fifty whole tokens of an 18 decimal asset.
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if value == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	mantissa, exp := value, ""
	if idx := strings.IndexAny(value, "eE"); idx >= 0 {
		mantissa, exp = value[:idx], value[idx+1:]
	}
	m, ok := new(big.Int).SetString(mantissa, 10)
	if !ok || m.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if exp != "" {
		e, ok := new(big.Int).SetString(exp, 10)
		if !ok || e.Sign() < 0 || e.Cmp(big.NewInt(77)) > 0 {
			return nil, fmt.Errorf("invalid amount exponent %q", value)
		}
		m.Mul(m, new(big.Int).Exp(big.NewInt(10), e, nil))
	}
	out, overflow := uint256.FromBig(m)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", value)
	}
	return out, nil
}
