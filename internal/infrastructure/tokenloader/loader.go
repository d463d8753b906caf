// Package tokenloader reads per-network token lists that extend the wallet reader's
// candidate tokens.
package tokenloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/logger"
	"token_screener/internal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const DefaultTokenDirectoryPath = "data/tokens"

// TokenListEntry is one element of a <network>.json token list.
type TokenListEntry struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenFileLoader reads <dir>/<network identifier>.json.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

func NewTokenLoader(dir string, log port.Logger) *TokenFileLoader {
	if dir == "" {
		dir = DefaultTokenDirectoryPath
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TokenFileLoader{tokenDirPath: dir, logger: log}
}

// Path returns the list file for the network.
func (l *TokenFileLoader) Path(network entity.NetworkDefinition) string {
	return filepath.Join(l.tokenDirPath, network.Identifier+".json")
}

// LoadTokens parses the network's list. A missing file is an empty list. Entries
// whose address does not match the network kind are skipped.
func (l *TokenFileLoader) LoadTokens(network entity.NetworkDefinition) ([]TokenListEntry, error) {
	path := l.Path(network)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Debug("No token list for network", "network", network.Identifier, "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token list %s: %w", path, err)
	}

	var entries []TokenListEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token list %s: %w", path, err)
	}

	valid := make([]TokenListEntry, 0, len(entries))
	for _, e := range entries {
		if err := utils.ValidateAddress(network.Kind, e.Address); err != nil {
			l.logger.Warn("Skipping token with invalid address", "path", path, "symbol", e.Symbol, "error", err)
			continue
		}
		valid = append(valid, e)
	}
	l.logger.Info("Loaded token list", "network", network.Identifier, "count", len(valid), "skipped", len(entries)-len(valid))
	return valid, nil
}

// CandidateTokens merges the configured addresses with the network's list file,
// dropping duplicates and keeping first-seen order.
func (l *TokenFileLoader) CandidateTokens(network entity.NetworkDefinition, configured []string) ([]string, error) {
	entries, err := l.LoadTokens(network)
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, len(configured)+len(entries))
	all = append(all, configured...)
	for _, e := range entries {
		all = append(all, e.Address)
	}
	return utils.UniqueStrings(all), nil
}
