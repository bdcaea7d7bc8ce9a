package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curvePool/internal/chain"
	"curvePool/internal/config"
	"curvePool/internal/quote"
	"curvePool/internal/simulate"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := optionalAmount(cfg.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	var res quote.Result
	if cfg.RPCURL != "" && cfg.Pool != "" {
		if !common.IsHexAddress(cfg.Pool) {
			return fmt.Errorf("invalid pool address: %s", cfg.Pool)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		logger.Debug("live quote", zap.String("pool", cfg.Pool), zap.Uint64("block", cfg.Block))
		res, err = quote.Live(ctx, chainClient, chainClient, common.HexToAddress(cfg.Pool), cfg.Block, amount)
		if err != nil {
			return err
		}
	} else {
		supply, err := optionalAmount(cfg.Supply)
		if err != nil {
			return fmt.Errorf("supply: %w", err)
		}
		reserve, err := optionalAmount(cfg.QuoteReserve)
		if err != nil {
			return fmt.Errorf("quote reserve: %w", err)
		}
		res, err = quote.Compute(quote.Request{
			SlopeNumerator: cfg.SlopeNumerator,
			Exponent:       cfg.Exponent,
			FeeRate:        cfg.FeeRate,
			Supply:         supply,
			QuoteReserve:   reserve,
			Amount:         amount,
		})
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func optionalAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return nil, nil
	}
	return simulate.ParseAmount(value)
}
