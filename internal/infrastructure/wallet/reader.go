// Package wallet reads wallet balances for the configured network.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

type Config struct {
	Network         entity.NetworkDefinition
	CandidateTokens []string
	RPCCallTimeout  time.Duration
	BatchSize       int
	MaxConcurrent   int
}

// NewReader builds the reader matching the network kind.
func NewReader(ctx context.Context, cfg Config, logger *zap.Logger) (port.WalletReader, error) {
	switch cfg.Network.Kind {
	case entity.NetworkSolana, "":
		return NewSolanaReader(rpc.New(cfg.Network.RPCURL), cfg.Network, cfg.RPCCallTimeout, logger), nil
	case entity.NetworkEVM:
		return DialEVMReader(ctx, cfg.Network, EVMOptions{
			CandidateTokens:      cfg.CandidateTokens,
			RPCCallTimeout:       cfg.RPCCallTimeout,
			BatchSize:            cfg.BatchSize,
			MaxConcurrentBatches: cfg.MaxConcurrent,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported network kind %q", cfg.Network.Kind)
	}
}

var (
	_ port.WalletReader = (*SolanaReader)(nil)
	_ port.WalletReader = (*EVMReader)(nil)
)
