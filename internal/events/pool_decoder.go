package events

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"curvePool/internal/model"
	"curvePool/internal/pool"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for the pool events, keyed by topic0.
	Topic0Map map[string]string
}

// PoolDecoder decodes curve pool events.
type PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

func NewPoolDecoder(cfg DecoderConfig) (*PoolDecoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(poolABI.Events)+len(cfg.Topic0Map))
	for _, name := range EventNames() {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// EventNames lists the pool events in declaration order.
func EventNames() []string {
	return []string{pool.EventDeposit, pool.EventWithdraw, pool.EventSwap, pool.EventWithdrawFees}
}

// Topic0s returns the topic0 of every pool event.
func Topic0s() ([]common.Hash, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, 0, 4)
	for _, name := range EventNames() {
		out = append(out, parsed.Events[name].ID)
	}
	return out, nil
}

func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	addr := common.HexToAddress(log.Address)

	meta, err := getPoolMeta(ctx, addr)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case pool.EventDeposit:
		decoded, err = d.decodeDeposit(log)
	case pool.EventWithdraw:
		decoded, err = d.decodeWithdraw(log)
	case pool.EventSwap:
		decoded, err = d.decodeSwap(log)
	case pool.EventWithdrawFees:
		decoded, err = d.decodeWithdrawFees(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	event := buildTypedEvent(log, name, decoded, meta)
	if ctx.IncludeReserves {
		event.Reserves = getPoolReserves(ctx, addr, log.BlockNumber)
	}
	return event, nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "deposit":
		return pool.EventDeposit
	case "withdraw":
		return pool.EventWithdraw
	case "swap":
		return pool.EventSwap
	case "withdrawfees", "withdraw_fees":
		return pool.EventWithdrawFees
	default:
		return ""
	}
}

func callContext(ctx DecodeContext) context.Context {
	if ctx.Context == nil {
		return context.Background()
	}
	return ctx.Context
}

func getPoolMeta(ctx DecodeContext, addr common.Address) (model.PoolMeta, error) {
	if ctx.PoolMetaCache != nil {
		if meta, ok := ctx.PoolMetaCache.Get(addr); ok {
			return meta, nil
		}
	}
	if ctx.Chain == nil {
		return model.PoolMeta{}, fmt.Errorf("pool meta for %s not cached and chain client is nil", addr.Hex())
	}

	meta, err := FetchPoolMeta(callContext(ctx), ctx.Chain, addr)
	if err != nil {
		return model.PoolMeta{}, err
	}
	if ctx.PoolMetaCache != nil {
		ctx.PoolMetaCache.Set(addr, meta)
	}
	return meta, nil
}

// getPoolReserves is best effort; a failed read leaves reserves unset.
func getPoolReserves(ctx DecodeContext, addr common.Address, blockNumber uint64) *model.PoolReserves {
	if ctx.Chain == nil {
		return nil
	}
	reserves, err := FetchPoolReserves(callContext(ctx), ctx.Chain, addr, blockNumber)
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Debug("getReserves call failed", zap.String("pool", addr.Hex()), zap.Uint64("block", blockNumber), zap.Error(err))
		}
		return nil
	}
	return &reserves
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topic0(), Data: log.Data}
	return &model.TypedEvent{
		EventHeader: model.EventHeader{
			ChainID:     log.ChainID,
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash,
			TxHash:      log.TxHash,
			LogIndex:    log.LogIndex,
			Address:     log.Address,
			EventName:   name,
			Timestamp:   log.Timestamp,
		},
		Decoded:  decoded,
		PoolMeta: meta,
		Raw:      raw,
	}
}

type senderTo struct {
	Sender common.Address
	To     common.Address
}

func (d *PoolDecoder) parseSenderTo(event abi.Event, log model.LogRecord) (senderTo, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return senderTo{}, err
	}
	var indexed senderTo
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return senderTo{}, fmt.Errorf("parse topics: %w", err)
	}
	return indexed, nil
}

func (d *PoolDecoder) decodeDeposit(log model.LogRecord) (model.DepositEventData, error) {
	event := d.poolABI.Events[pool.EventDeposit]
	indexed, err := d.parseSenderTo(event, log)
	if err != nil {
		return model.DepositEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 3)
	if err != nil {
		return model.DepositEventData{}, err
	}
	return model.DepositEventData{
		Sender:       indexed.Sender.Hex(),
		BaseReserve:  amounts[0].String(),
		QuoteReserve: amounts[1].String(),
		BaseOut:      amounts[2].String(),
		To:           indexed.To.Hex(),
	}, nil
}

func (d *PoolDecoder) decodeWithdraw(log model.LogRecord) (model.WithdrawEventData, error) {
	event := d.poolABI.Events[pool.EventWithdraw]
	indexed, err := d.parseSenderTo(event, log)
	if err != nil {
		return model.WithdrawEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.WithdrawEventData{}, err
	}
	return model.WithdrawEventData{
		Sender:      indexed.Sender.Hex(),
		BaseAmount:  amounts[0].String(),
		QuoteAmount: amounts[1].String(),
		To:          indexed.To.Hex(),
	}, nil
}

func (d *PoolDecoder) decodeWithdrawFees(log model.LogRecord) (model.WithdrawFeesEventData, error) {
	event := d.poolABI.Events[pool.EventWithdrawFees]
	indexed, err := d.parseSenderTo(event, log)
	if err != nil {
		return model.WithdrawFeesEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.WithdrawFeesEventData{}, err
	}
	return model.WithdrawFeesEventData{
		Sender:      indexed.Sender.Hex(),
		BaseAmount:  amounts[0].String(),
		QuoteAmount: amounts[1].String(),
		To:          indexed.To.Hex(),
	}, nil
}

func (d *PoolDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.poolABI.Events[pool.EventSwap]
	indexed, err := d.parseSenderTo(event, log)
	if err != nil {
		return model.SwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 4 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	assetIn, err := asAddress(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	assetOut, err := asAddress(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amountIn, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amountOut, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:    indexed.Sender.Hex(),
		AssetIn:   assetIn.Hex(),
		AssetOut:  assetOut.Hex(),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
		To:        indexed.To.Hex(),
	}, nil
}

func unpackAmounts(event abi.Event, dataHex string, want int) ([]*big.Int, error) {
	values, err := unpackNonIndexed(event, dataHex)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", strings.ToLower(event.Name), len(values))
	}
	out := make([]*big.Int, 0, want)
	for _, v := range values {
		amount, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
