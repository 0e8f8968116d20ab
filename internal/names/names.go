// Package names turns recipient strings into concrete addresses. Literal
// hex addresses pass through untouched; anything else is handed to exactly
// one external name lookup.
package names

import (
	"context"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Lookup resolves a human readable name. A zero address with a nil error
// means the name is unknown.
type Lookup interface {
	Resolve(ctx context.Context, name string) (common.Address, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, name string) (common.Address, error)

// Resolve implements Lookup.
func (f LookupFunc) Resolve(ctx context.Context, name string) (common.Address, error) {
	return f(ctx, name)
}

// IsLiteralAddress reports whether input is a 0x prefixed 20-byte hex string.
func IsLiteralAddress(input string) bool {
	return len(input) == 42 && strings.HasPrefix(input, "0x") && common.IsHexAddress(input)
}

// FormatAddress returns input unchanged when it already is a literal
// address and otherwise asks lookup once.
func FormatAddress(ctx context.Context, lookup Lookup, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "Empty address")
	}
	if IsLiteralAddress(input) {
		return input, nil
	}
	if lookup == nil {
		return "", xerrors.New(xerrors.CodeInvalidAddress, "")
	}

	resolved, err := lookup.Resolve(ctx, input)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidAddress, err, "")
	}
	if resolved == (common.Address{}) {
		return "", xerrors.New(xerrors.CodeInvalidAddress, "")
	}
	return resolved.Hex(), nil
}
