package wallet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
)

const (
	evmWallet = "0x1111111111111111111111111111111111111111"
	tokenA    = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenB    = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

type fakeBatch struct {
	balances map[string]int64
	decimals map[string]uint8
	failTo   string

	mu    sync.Mutex
	calls int
}

func (f *fakeBatch) BatchCallContext(_ context.Context, elems []rpc.BatchElem) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	initParsedERC20ABI()
	for i := range elems {
		e := &elems[i]
		switch e.Method {
		case "eth_getBalance":
			*(e.Result.(**hexutil.Big)) = (*hexutil.Big)(big.NewInt(2_000_000_000_000_000_000))
		case "eth_call":
			args := e.Args[0].(map[string]interface{})
			to := args["to"].(common.Address).Hex()
			data := args["data"].(hexutil.Bytes)
			if strings.EqualFold(to, f.failTo) {
				e.Error = errors.New("execution reverted")
				continue
			}
			var out []byte
			var err error
			if string(data[:4]) == string(decimalsID) {
				out, err = parsedERC20ABI.Methods["decimals"].Outputs.Pack(f.decimals[to])
			} else {
				out, err = parsedERC20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(f.balances[to]))
			}
			if err != nil {
				return err
			}
			*(e.Result.(*hexutil.Bytes)) = out
		}
	}
	return nil
}

func evmNetwork() entity.NetworkDefinition {
	return entity.NetworkDefinition{Identifier: "ethereum", Kind: entity.NetworkEVM, NativeSymbol: "ETH", Decimals: 18}
}

func TestEVMReader_ReadHoldings(t *testing.T) {
	a := common.HexToAddress(tokenA).Hex()
	b := common.HexToAddress(tokenB).Hex()
	fake := &fakeBatch{
		balances: map[string]int64{a: 1_500_000, b: 0},
		decimals: map[string]uint8{a: 6, b: 18},
	}
	r := NewEVMReader(fake, evmNetwork(), EVMOptions{CandidateTokens: []string{a, b, "not-an-address"}}, nil)

	h, err := r.ReadHoldings(context.Background(), evmWallet)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", h.NativeBalance.String())
	require.Len(t, h.Tokens, 1)
	assert.Equal(t, a, h.Tokens[0].Mint)
	assert.Equal(t, uint8(6), h.Tokens[0].Decimals)
	assert.Equal(t, "1.5", h.Tokens[0].FormattedBalance)
	assert.Equal(t, 1.5, h.Tokens[0].UIAmount)
}

func TestEVMReader_SplitsBatchesAndSkipsFailedTokens(t *testing.T) {
	a := common.HexToAddress(tokenA).Hex()
	b := common.HexToAddress(tokenB).Hex()
	fake := &fakeBatch{
		balances: map[string]int64{a: 10, b: 20},
		decimals: map[string]uint8{a: 0, b: 0},
		failTo:   b,
	}
	r := NewEVMReader(fake, evmNetwork(), EVMOptions{CandidateTokens: []string{a, b}, BatchSize: 2}, nil)

	h, err := r.ReadHoldings(context.Background(), evmWallet)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
	require.Len(t, h.Tokens, 1)
	assert.Equal(t, "10", h.Tokens[0].FormattedBalance)
}

func TestEVMReader_InvalidWallet(t *testing.T) {
	r := NewEVMReader(&fakeBatch{}, evmNetwork(), EVMOptions{}, nil)
	_, err := r.ReadHoldings(context.Background(), "0x123")
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
}

type fakeSolana struct {
	lamports uint64
	accounts string
	err      error
}

func (f *fakeSolana) GetBalance(context.Context, solana.PublicKey, solrpc.CommitmentType) (*solrpc.GetBalanceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &solrpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeSolana) GetTokenAccountsByOwner(context.Context, solana.PublicKey, *solrpc.GetTokenAccountsConfig, *solrpc.GetTokenAccountsOpts) (*solrpc.GetTokenAccountsResult, error) {
	var out solrpc.GetTokenAccountsResult
	if err := json.Unmarshal([]byte(f.accounts), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

const solWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func tokenAccountJSON(pubkey, mint, amount string, decimals int) string {
	return `{"pubkey":"` + pubkey + `","account":{"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","executable":false,"rentEpoch":0,
"data":{"program":"spl-token","space":165,"parsed":{"type":"account","info":{"mint":"` + mint + `","owner":"` + solWallet + `",
"tokenAmount":{"amount":"` + amount + `","decimals":` + big.NewInt(int64(decimals)).String() + `,"uiAmount":0}}}}}}`
}

func TestSolanaReader_ReadHoldings(t *testing.T) {
	mintA := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintB := "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	fake := &fakeSolana{
		lamports: 1_500_000_000,
		accounts: `{"context":{"slot":1},"value":[` +
			tokenAccountJSON("So11111111111111111111111111111111111111112", mintA, "1000000", 6) + `,` +
			tokenAccountJSON("SysvarRent111111111111111111111111111111111", mintA, "500000", 6) + `,` +
			tokenAccountJSON("SysvarC1ock11111111111111111111111111111111", mintB, "0", 6) + `]}`,
	}
	r := NewSolanaReader(fake, entity.Solana, 0, nil)

	h, err := r.ReadHoldings(context.Background(), solWallet)
	require.NoError(t, err)
	assert.Equal(t, "1500000000", h.NativeBalance.String())
	require.Len(t, h.Tokens, 1)
	assert.Equal(t, mintA, h.Tokens[0].Mint)
	assert.Equal(t, "1.5", h.Tokens[0].FormattedBalance)
	assert.Equal(t, "1500000", h.Tokens[0].Amount.String())
}

func TestSolanaReader_Errors(t *testing.T) {
	r := NewSolanaReader(&fakeSolana{err: errors.New("rpc down")}, entity.Solana, 0, nil)
	_, err := r.ReadHoldings(context.Background(), solWallet)
	assert.ErrorContains(t, err, "rpc down")

	_, err = r.ReadHoldings(context.Background(), "0xabc")
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
}

func TestNewReader_UnsupportedKind(t *testing.T) {
	_, err := NewReader(context.Background(), Config{Network: entity.NetworkDefinition{Kind: "cosmos"}}, nil)
	assert.Error(t, err)
}
