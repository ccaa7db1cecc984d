package custody

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParsePrincipal parses a 0x-prefixed 20-byte hex address. The zero address
// is not a valid principal.
func ParsePrincipal(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: principal %q must be 0x-prefixed", ErrInvalidArgument, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: malformed principal %q", ErrInvalidArgument, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero principal", ErrInvalidArgument)
	}
	return addr, nil
}
