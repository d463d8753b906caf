package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"token_screener/internal/domain/entity"
)

// ValidateSolanaAddress checks that addr is a base-58 encoded 32-byte public key.
func ValidateSolanaAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%w: empty", entity.ErrInvalidAddress)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q is not base58: %v", entity.ErrInvalidAddress, addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %q decodes to %d bytes, want 32", entity.ErrInvalidAddress, addr, len(raw))
	}
	return nil
}

// ValidateEVMAddress checks for a 0x-prefixed 20-byte hex address.
func ValidateEVMAddress(addr string) error {
	if !common.IsHexAddress(addr) || !strings.HasPrefix(addr, "0x") {
		return fmt.Errorf("%w: %q is not a hex address", entity.ErrInvalidAddress, addr)
	}
	return nil
}

// AddressKey is the comparison form of an address. EVM hex addresses are
// case-insensitive and fold to lower case. Base58 is case-sensitive and is kept as is.
func AddressKey(addr string) string {
	addr = strings.TrimSpace(addr)
	if ValidateEVMAddress(addr) == nil {
		return strings.ToLower(addr)
	}
	return addr
}

// ValidateAddress dispatches on the network kind.
func ValidateAddress(kind entity.NetworkKind, addr string) error {
	if kind == entity.NetworkEVM {
		return ValidateEVMAddress(addr)
	}
	return ValidateSolanaAddress(addr)
}
