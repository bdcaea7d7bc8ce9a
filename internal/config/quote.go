package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command. With RPCURL and
// Pool set the curve parameters and supply are read from the deployed pool;
// otherwise Supply, or failing that QuoteReserve, fixes the curve position.
type QuoteConfig struct {
	SlopeNumerator uint32
	Exponent       uint8
	FeeRate        uint8
	Supply         string
	QuoteReserve   string
	Amount         string
	RPCURL         string
	Pool           string
	Block          uint64
	LogLevel       string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"slope-numerator": uint32(1_000_000),
		"exponent":        uint8(1),
		"fee-rate":        uint8(0),
		"log-level":       "warn",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	exponent := v.GetUint("exponent")
	feeRate := v.GetUint("fee-rate")
	if exponent > 255 || feeRate > 255 {
		return QuoteConfig{}, fmt.Errorf("exponent and fee-rate must fit in a byte")
	}

	cfg := QuoteConfig{
		SlopeNumerator: v.GetUint32("slope-numerator"),
		Exponent:       uint8(exponent),
		FeeRate:        uint8(feeRate),
		Supply:         v.GetString("supply"),
		QuoteReserve:   v.GetString("quote-reserve"),
		Amount:         v.GetString("amount"),
		RPCURL:         v.GetString("rpc"),
		Pool:           v.GetString("pool"),
		Block:          v.GetUint64("block"),
		LogLevel:       v.GetString("log-level"),
	}

	live := cfg.RPCURL != "" && cfg.Pool != ""
	if cfg.Supply == "" && cfg.QuoteReserve == "" && !live {
		return QuoteConfig{}, fmt.Errorf("one of supply, quote-reserve or rpc with pool is required")
	}
	return cfg, nil
}
