package tokenloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
)

const (
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

var ethereum = entity.NetworkDefinition{Identifier: "ethereum", Kind: entity.NetworkEVM}

func writeList(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadTokensSkipsInvalidAddresses(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "ethereum.json", `[
		{"address":"`+weth+`","symbol":"WETH","decimals":18},
		{"address":"So11111111111111111111111111111111111111112","symbol":"SOL","decimals":9},
		{"address":"`+usdc+`","symbol":"USDC","decimals":6}
	]`)

	entries, err := NewTokenLoader(dir, nil).LoadTokens(ethereum)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "WETH", entries[0].Symbol)
	assert.Equal(t, uint8(6), entries[1].Decimals)
}

func TestLoadTokensMissingFileIsEmpty(t *testing.T) {
	entries, err := NewTokenLoader(t.TempDir(), nil).LoadTokens(ethereum)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadTokensRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "ethereum.json", `{"address":`)

	_, err := NewTokenLoader(dir, nil).LoadTokens(ethereum)
	assert.Error(t, err)
}

func TestCandidateTokensMergesConfigured(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "ethereum.json", `[{"address":"`+weth+`"},{"address":"`+usdc+`"}]`)

	got, err := NewTokenLoader(dir, nil).CandidateTokens(ethereum, []string{usdc})
	require.NoError(t, err)
	assert.Equal(t, []string{usdc, weth}, got)
}
