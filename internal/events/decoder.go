package events

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"curvePool/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// ContractCaller runs read-only contract calls. *chain.Client implements it.
type ContractCaller interface {
	Call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context       context.Context
	Chain         ContractCaller
	PoolMetaCache *PoolMetaCache
	Logger        *zap.Logger
	// IncludeReserves attaches pool reserves at the log's block.
	IncludeReserves bool
}
