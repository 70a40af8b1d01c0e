package enrich

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson"
)

// present reports whether path resolves to a non-null value
func present(v *fastjson.Value, path ...string) bool {
	field := v.Get(path...)
	return field != nil && field.Type() != fastjson.TypeNull
}

// argAmount reads a balance-shaped argument. Numbers, decimal strings,
// 0x-prefixed hex strings and comma-grouped strings are accepted.
func argAmount(v *fastjson.Value, path ...string) (decimal.Decimal, bool) {
	field := v.Get(path...)
	if field == nil {
		return decimal.Zero, false
	}

	switch field.Type() {
	case fastjson.TypeNumber:
		d, err := decimal.NewFromString(string(field.MarshalTo(nil)))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case fastjson.TypeString:
		return parseAmountString(string(field.GetStringBytes()))
	default:
		return decimal.Zero, false
	}
}

func parseAmountString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return decimal.Zero, false
		}
		return decimal.NewFromBigInt(n, 0), true
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// firstAmount returns the first path that holds a readable amount
func firstAmount(v *fastjson.Value, paths ...[]string) decimal.Decimal {
	for _, path := range paths {
		if amount, ok := argAmount(v, path...); ok {
			return amount
		}
	}
	return decimal.Zero
}

// argAccount reads an account argument. MultiAddress values carry the
// account under "id"; plain strings are used as they are.
func argAccount(v *fastjson.Value, path ...string) string {
	field := v.Get(path...)
	if field == nil {
		return ""
	}
	return accountString(field)
}

func accountString(field *fastjson.Value) string {
	switch field.Type() {
	case fastjson.TypeString:
		return string(field.GetStringBytes())
	case fastjson.TypeObject:
		id := field.Get("id")
		if id == nil || id.Type() == fastjson.TypeNull {
			return ""
		}
		if id.Type() == fastjson.TypeString {
			return string(id.GetStringBytes())
		}
		return string(id.MarshalTo(nil))
	case fastjson.TypeNull:
		return ""
	default:
		return string(field.MarshalTo(nil))
	}
}

// argLen returns the length of an array argument, zero if it is not an array
func argLen(v *fastjson.Value, path ...string) int {
	field := v.Get(path...)
	if field == nil || field.Type() != fastjson.TypeArray {
		return 0
	}
	items, _ := field.Array()
	return len(items)
}

// argPlain reads an argument as a plain Go value, nil when absent
func argPlain(v *fastjson.Value, path ...string) interface{} {
	return plainValue(v.Get(path...))
}

// plainValue converts a fastjson tree into maps, slices and scalars.
// Numbers keep their exact text as json.Number.
func plainValue(v *fastjson.Value) interface{} {
	if v == nil {
		return nil
	}

	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		out := make(map[string]interface{}, o.Len())
		o.Visit(func(key []byte, child *fastjson.Value) {
			out[string(key)] = plainValue(child)
		})
		return out
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = plainValue(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.MarshalTo(nil))
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

// decodeMetadata turns hex-encoded bytes into text. Anything that is not a
// 0x-prefixed hex string of valid UTF-8 is returned unchanged.
func decodeMetadata(v *fastjson.Value, path ...string) interface{} {
	field := v.Get(path...)
	if field == nil {
		return ""
	}
	if field.Type() != fastjson.TypeString {
		return plainValue(field)
	}

	s := string(field.GetStringBytes())
	if !strings.HasPrefix(s, "0x") {
		return s
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil || !utf8.Valid(raw) {
		return s
	}
	return string(raw)
}
