package events

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"excelsior/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func formatAddress(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

func formatUint256(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
