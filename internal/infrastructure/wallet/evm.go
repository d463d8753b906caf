package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/utils"
)

// ERC20 ABI subset: balanceOf and decimals.
const erc20ABI = `[
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"}
]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	balanceOfID     []byte
	decimalsID      []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfID = parsedERC20ABI.Methods["balanceOf"].ID
		decimalsID = parsedERC20ABI.Methods["decimals"].ID
	})
}

// BatchCaller is satisfied by *rpc.Client.
type BatchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// EVMReader reads native and ERC-20 balances over JSON-RPC batches. Token discovery is
// limited to the configured candidate contracts.
type EVMReader struct {
	rpc            BatchCaller
	netDef         entity.NetworkDefinition
	candidates     []string
	rpcCallTimeout time.Duration
	batchSize      int
	maxInflight    int
	logger         *zap.Logger
}

type EVMOptions struct {
	CandidateTokens []string
	RPCCallTimeout  time.Duration
	// BatchSize caps the elements of one JSON-RPC batch; further batches run in parallel.
	BatchSize int
	// MaxConcurrentBatches bounds the batches in flight.
	MaxConcurrentBatches int
}

// DialEVMReader connects to the network's RPC endpoint.
func DialEVMReader(ctx context.Context, netDef entity.NetworkDefinition, opts EVMOptions, logger *zap.Logger) (*EVMReader, error) {
	client, err := rpc.DialContext(ctx, netDef.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s: %w", netDef.RPCURL, err)
	}
	return NewEVMReader(client, netDef, opts, logger), nil
}

func NewEVMReader(caller BatchCaller, netDef entity.NetworkDefinition, opts EVMOptions, logger *zap.Logger) *EVMReader {
	initParsedERC20ABI()
	if opts.RPCCallTimeout <= 0 {
		opts.RPCCallTimeout = 10 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxConcurrentBatches <= 0 {
		opts.MaxConcurrentBatches = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	candidates := make([]string, 0, len(opts.CandidateTokens))
	for _, addr := range utils.UniqueStrings(opts.CandidateTokens) {
		if utils.ValidateEVMAddress(addr) != nil {
			logger.Warn("skipping invalid candidate token", zap.String("address", addr))
			continue
		}
		candidates = append(candidates, addr)
	}
	return &EVMReader{
		rpc:            caller,
		netDef:         netDef,
		candidates:     candidates,
		rpcCallTimeout: opts.RPCCallTimeout,
		batchSize:      opts.BatchSize,
		maxInflight:    opts.MaxConcurrentBatches,
		logger:         logger.Named("EVMReader"),
	}
}

func (r *EVMReader) Network() entity.NetworkDefinition { return r.netDef }

// ReadHoldings returns the native balance and every candidate token with a non-zero
// balance. Per-token failures are logged and the token is skipped.
func (r *EVMReader) ReadHoldings(ctx context.Context, wallet string) (entity.WalletHoldings, error) {
	if err := utils.ValidateEVMAddress(wallet); err != nil {
		return entity.WalletHoldings{}, err
	}

	requests := []entity.BalanceRequestItem{{ID: "native", Type: entity.NativeBalanceRequest, WalletAddress: wallet}}
	for _, token := range r.candidates {
		requests = append(requests,
			entity.BalanceRequestItem{ID: "bal:" + token, Type: entity.TokenBalanceRequest, WalletAddress: wallet, TokenAddress: token},
			entity.BalanceRequestItem{ID: "dec:" + token, Type: entity.TokenDecimalsRequest, TokenAddress: token},
		)
	}

	results, err := r.getBalances(ctx, requests)
	if err != nil {
		return entity.WalletHoldings{}, err
	}

	holdings := entity.WalletHoldings{Wallet: wallet, NativeBalance: big.NewInt(0)}
	balances := make(map[string]*big.Int)
	decimals := make(map[string]uint8)
	for _, res := range results {
		if res.Error != nil {
			if res.IsNative {
				return entity.WalletHoldings{}, res.Error
			}
			r.logger.Warn("token balance read failed", zap.String("token", res.TokenAddress), zap.Error(res.Error))
			continue
		}
		switch {
		case res.IsNative:
			holdings.NativeBalance = res.Balance
		case strings.HasPrefix(res.RequestID, "dec:"):
			decimals[res.TokenAddress] = res.Decimals
		default:
			balances[res.TokenAddress] = res.Balance
		}
	}

	for _, token := range r.candidates {
		bal, ok := balances[token]
		if !ok || bal == nil || bal.Sign() == 0 {
			continue
		}
		dec, ok := decimals[token]
		if !ok {
			dec = 18
		}
		formatted, _ := utils.FormatBigInt(bal, dec)
		ui, _ := utils.ToFloat(bal, dec).Float64()
		holdings.Tokens = append(holdings.Tokens, entity.Holding{
			Mint:             token,
			Decimals:         dec,
			Amount:           bal,
			FormattedBalance: formatted,
			UIAmount:         ui,
		})
	}
	return holdings, nil
}

// getBalances splits requests into JSON-RPC batches and runs them in parallel.
func (r *EVMReader) getBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	results := make([]entity.BalanceResultItem, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxInflight)
	for start := 0; start < len(requests); start += r.batchSize {
		end := min(start+r.batchSize, len(requests))
		g.Go(func() error {
			out, err := r.batchCall(gctx, requests[start:end])
			if err != nil {
				return err
			}
			copy(results[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *EVMReader) batchCall(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	batchElems := make([]rpc.BatchElem, len(requests))
	results := make([]entity.BalanceResultItem, len(requests))

	for i, reqItem := range requests {
		results[i] = entity.BalanceResultItem{
			RequestID:    reqItem.ID,
			TokenAddress: reqItem.TokenAddress,
			IsNative:     reqItem.Type == entity.NativeBalanceRequest,
			Decimals:     r.netDef.Decimals,
		}

		switch reqItem.Type {
		case entity.NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{common.HexToAddress(reqItem.WalletAddress), "latest"},
				Result: new(*hexutil.Big),
			}
		case entity.TokenBalanceRequest:
			padded := common.LeftPadBytes(common.HexToAddress(reqItem.WalletAddress).Bytes(), 32)
			callData := append(append([]byte{}, balanceOfID...), padded...)
			batchElems[i] = ethCall(reqItem.TokenAddress, callData)
		case entity.TokenDecimalsRequest:
			batchElems[i] = ethCall(reqItem.TokenAddress, append([]byte{}, decimalsID...))
		default:
			results[i].Error = fmt.Errorf("unknown balance request type: %v for %s", reqItem.Type, reqItem.TokenAddress)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.rpcCallTimeout)
	defer cancel()
	if err := r.rpc.BatchCallContext(callCtx, batchElems); err != nil {
		return nil, fmt.Errorf("RPC batch call failed: %w", err)
	}

	for i, elem := range batchElems {
		if results[i].Error != nil {
			continue
		}
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("%s for %s: %w", elem.Method, requests[i].TokenAddress, elem.Error)
			continue
		}
		switch requests[i].Type {
		case entity.NativeBalanceRequest:
			if res, ok := elem.Result.(**hexutil.Big); ok && res != nil && *res != nil {
				results[i].Balance = (*big.Int)(*res)
			} else {
				results[i].Error = fmt.Errorf("failed to decode native balance: unexpected type or nil result")
			}
		case entity.TokenBalanceRequest:
			results[i].Balance, results[i].Error = unpackBalance(elem.Result)
		case entity.TokenDecimalsRequest:
			results[i].Decimals, results[i].Error = unpackDecimals(elem.Result)
		}
	}
	return results, nil
}

func ethCall(to string, data []byte) rpc.BatchElem {
	return rpc.BatchElem{
		Method: "eth_call",
		Args: []interface{}{map[string]interface{}{
			"to":   common.HexToAddress(to),
			"data": hexutil.Bytes(data),
		}, "latest"},
		Result: new(hexutil.Bytes),
	}
}

func unpackBalance(result interface{}) (*big.Int, error) {
	raw, ok := result.(*hexutil.Bytes)
	if !ok || raw == nil {
		return nil, fmt.Errorf("failed to decode token balance: unexpected type or nil result")
	}
	if len(*raw) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := parsedERC20ABI.Unpack("balanceOf", *raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w. Raw: %s", err, hexutil.Encode(*raw))
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf unpack returned no data")
	}
	bal, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf result is %T, want *big.Int", unpacked[0])
	}
	return bal, nil
}

func unpackDecimals(result interface{}) (uint8, error) {
	raw, ok := result.(*hexutil.Bytes)
	if !ok || raw == nil || len(*raw) == 0 {
		return 0, fmt.Errorf("failed to decode decimals: empty result")
	}
	unpacked, err := parsedERC20ABI.Unpack("decimals", *raw)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack decimals result: %w", err)
	}
	if len(unpacked) == 0 {
		return 0, fmt.Errorf("decimals unpack returned no data")
	}
	dec, ok := unpacked[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals result is %T, want uint8", unpacked[0])
	}
	return dec, nil
}
