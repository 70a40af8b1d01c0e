package enrich

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/txplain/callplain/internal/models"
)

// DisplayPrecision is the number of fractional digits kept by FormatAmount
const DisplayPrecision = 6

// DefaultShortAddressCount is the number of characters kept on each side by ToShortAddress
const DefaultShortAddressCount = 6

// ayeMask is the vote-direction bit of a standard conviction ballot byte
const ayeMask = 0b10000000

// FormatAmount scales a base-unit quantity down by 10^decimals and rounds it to
// DisplayPrecision fractional digits. Negative quantities are passed through.
// Decimals outside [0, models.MaxDecimal] yield 0.
func FormatAmount(raw decimal.Decimal, decimals int) float64 {
	if decimals < 0 || decimals > models.MaxDecimal {
		return 0
	}
	return raw.Shift(int32(-decimals)).Round(DisplayPrecision).InexactFloat64()
}

// ToShortAddress shortens an address to its first and last six characters
func ToShortAddress(address string) string {
	return ToShortAddressN(address, DefaultShortAddressCount)
}

// ToShortAddressN keeps count characters on each side of a literal "...".
// For addresses shorter than 2*count the two halves overlap.
func ToShortAddressN(address string, count int) string {
	if address == "" {
		return ""
	}
	if count <= 0 {
		return "..." + address
	}

	head := address
	if len(head) > count {
		head = head[:count]
	}
	tail := address
	if len(tail) > count {
		tail = tail[len(tail)-count:]
	}
	return head + "..." + tail
}

// IsAye reports whether bit 7 of a hex-encoded ballot byte is set.
// Malformed input decodes as false, including strings that only start with
// valid hex digits ("80zz").
func IsAye(voteHex string) bool {
	n, ok := parseHexByte(voteHex)
	if !ok {
		return false
	}
	return n&ayeMask != 0
}

func parseHexByte(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
