package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curvePool/internal/chain"
	"curvePool/internal/config"
	"curvePool/internal/events"
	"curvePool/internal/model"
	"curvePool/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.IncludeReserves && cfg.RPCURL == "" {
		return fmt.Errorf("include-reserves needs an rpc url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decodeCtx := events.DecodeContext{
		Context:         ctx,
		PoolMetaCache:   events.NewPoolMetaCache(),
		Logger:          logger,
		IncludeReserves: cfg.IncludeReserves,
	}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		decodeCtx.Chain = chainClient
	}

	decoder, err := events.NewPoolDecoder(events.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	var errWriter *storage.JSONLWriter
	var errSink recordWriter
	if cfg.Errors != "" {
		errWriter, err = storage.NewJSONLWriter(cfg.Errors, false)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		errSink = errWriter
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("live_rpc", decodeCtx.Chain != nil),
		zap.Bool("include_reserves", cfg.IncludeReserves),
	)

	var total, decoded, skipped, failed int
	err = storage.ScanJSONL(inputFile, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			writeDecodeError(logger, errSink, model.DecodeError{Line: total, Error: err.Error()})
			return nil
		}
		if record.Topic0() == "" {
			failed++
			writeDecodeError(logger, errSink, model.NewDecodeError(total, record, fmt.Errorf("missing topic0")))
			return nil
		}
		if !decoder.CanDecode(record.Topic0()) {
			skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			failed++
			writeDecodeError(logger, errSink, model.NewDecodeError(total, record, err))
			return nil
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		decoded++
		return nil
	})
	if err != nil {
		return err
	}
	if err := outWriter.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := errWriter.Close(); err != nil {
		logger.Warn("close errors file failed", zap.String("errors", cfg.Errors), zap.Error(err))
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("pools", decodeCtx.PoolMetaCache.Len()),
	)
	return nil
}

type recordWriter interface {
	Write(value interface{}) error
}

// writeDecodeError records a failed line in the errors file. A write failure
// is logged and does not stop the decode.
func writeDecodeError(logger *zap.Logger, writer recordWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	if err := writer.Write(errRecord); err != nil {
		logger.Warn("write decode error record failed",
			zap.Int("line", errRecord.Line),
			zap.String("decode_error", errRecord.Error),
			zap.Error(err),
		)
	}
}
