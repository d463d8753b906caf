// Package addressloader reads plain-text address lists, one address per line.
package addressloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/logger"
	"token_screener/internal/pkg/utils"
)

// AddressFileLoader loads addresses valid for one network kind. Blank lines and lines
// starting with # are ignored.
type AddressFileLoader struct {
	filePath string
	kind     entity.NetworkKind
	logger   port.Logger
}

func NewAddressFileLoader(path string, kind entity.NetworkKind, log port.Logger) *AddressFileLoader {
	if log == nil {
		log = logger.Nop()
	}
	return &AddressFileLoader{filePath: path, kind: kind, logger: log}
}

// Load returns the valid addresses in file order without duplicates.
func (l *AddressFileLoader) Load() ([]string, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open address file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var addrs []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := utils.ValidateAddress(l.kind, line); err != nil {
			l.logger.Warn("Skipping invalid address", "file", l.filePath, "line_number", lineNum, "error", err)
			continue
		}
		addrs = append(addrs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning address file %s: %w", l.filePath, err)
	}

	addrs = utils.UniqueStrings(addrs)
	l.logger.Info("Addresses loaded from file", "count", len(addrs), "path", l.filePath)
	return addrs, nil
}

// Set loads the file into a membership set.
func (l *AddressFileLoader) Set() (map[string]struct{}, error) {
	addrs, err := l.Load()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return set, nil
}
