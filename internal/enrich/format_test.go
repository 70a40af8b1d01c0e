package enrich

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		expected float64
	}{
		{"1500000000000", 12, 1.5},
		{"5000000000000", 12, 5},
		{"0", 12, 0},
		{"1", 12, 0}, // below display precision
		{"1234567", 12, 0.000001},
		{"123456789", 10, 0.012346},
		{"340282366920938463463374607431768211455", 18, 340282366920938463463.374607},
		{"-2500000000", 10, -0.25},
		{"42", 0, 42},
		{"1500000000000", 255, 0},
		{"1500000000000", 256, 0},
		{"1500000000000", 4294967284, 0}, // would wrap to -12 as int32
		{"1500000000000", -1, 0},
	}

	for _, test := range tests {
		raw := decimal.RequireFromString(test.raw)
		result := FormatAmount(raw, test.decimals)
		assert.InDelta(t, test.expected, result, 1e-9, "FormatAmount(%s, %d)", test.raw, test.decimals)
	}
}

func TestFormatAmount_ScaleConsistent(t *testing.T) {
	raws := []int64{0, 1, 7, 1500000000000, 987654321987, 10}
	for _, r := range raws {
		raw := decimal.NewFromInt(r)
		for decimals := 0; decimals <= 12; decimals += 3 {
			base := FormatAmount(raw, decimals)
			for d := 0; d <= 6; d++ {
				scaled := raw.Shift(int32(d))
				assert.Equal(t, base, FormatAmount(scaled, decimals+d),
					"FormatAmount(%d*10^%d, %d+%d)", r, d, decimals, d)
			}
		}
	}
}

func TestToShortAddress(t *testing.T) {
	tests := []struct {
		address  string
		count    int
		expected string
	}{
		{"", 6, ""},
		{"1a2b3c4d5e6f", 6, "1a2b3c...4d5e6f"},
		{"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", 6, "5Grwva...GKutQY"},
		{"abc", 6, "abc...abc"},
		{"abcdefgh", 4, "abcd...efgh"},
		{"abcdef", 0, "...abcdef"},
	}

	for _, test := range tests {
		result := ToShortAddressN(test.address, test.count)
		assert.Equal(t, test.expected, result, "ToShortAddressN(%q, %d)", test.address, test.count)
	}

	assert.Equal(t, "1a2b3c...4d5e6f", ToShortAddress("1a2b3c4d5e6f"))
}

func TestIsAye(t *testing.T) {
	tests := []struct {
		vote     string
		expected bool
	}{
		{"80", true},
		{"00", false},
		{"ff", true},
		{"0x81", true},
		{"0x01", false},
		{"7f", false},
		{"zz", false},
		{"80zz", false},
		{"", false},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, IsAye(test.vote), "IsAye(%q)", test.vote)
	}
}

func TestStakingActionCleaner(t *testing.T) {
	tests := map[string]string{
		"bond":               "stake",
		"unbond":             "unstake",
		"chill":              "remove validators",
		"nominate":           "select validators",
		"setMetadata":        "set pool name",
		"setState":           "set pool state",
		"create":             "create pool",
		"unrecognizedMethod": "unrecognizedMethod",
		"":                   "",
	}

	for method, expected := range tests {
		assert.Equal(t, expected, StakingActionCleaner(method), "StakingActionCleaner(%q)", method)
	}
}
