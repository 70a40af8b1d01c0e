package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// EnrichedType tags an EnrichedTx as decoded by a dedicated handler or not
type EnrichedType string

const (
	EnrichedKnown   EnrichedType = "KNOWN"
	EnrichedGeneric EnrichedType = "GENERIC"
)

// RawCall is a decoded extrinsic call plus the chain context needed to display it.
// Args is read-only once the call is constructed.
type RawCall struct {
	Section string
	Method  string
	Args    *fastjson.Value
	Token   string
	Decimal int
}

// NewRawCall builds a RawCall around an already parsed args tree
func NewRawCall(section, method string, args *fastjson.Value, token string, decimal int) *RawCall {
	settle(args)
	if decimal < 0 {
		decimal = 0
	}
	return &RawCall{
		Section: section,
		Method:  method,
		Args:    args,
		Token:   token,
		Decimal: decimal,
	}
}

// ParseRawCall parses the JSON encoding of call arguments and builds a RawCall.
// Empty input is treated as a call without arguments.
func ParseRawCall(section, method string, args []byte, token string, decimal int) (*RawCall, error) {
	var v *fastjson.Value
	if len(strings.TrimSpace(string(args))) > 0 {
		var p fastjson.Parser
		parsed, err := p.ParseBytes(args)
		if err != nil {
			return nil, fmt.Errorf("failed to parse call args: %w", err)
		}
		v = parsed
	}
	return NewRawCall(section, method, v, token, decimal), nil
}

// settle walks the whole tree once. fastjson unescapes strings and object keys
// lazily on first access; doing it up front means later reads never write.
func settle(v *fastjson.Value) {
	if v == nil {
		return
	}
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		o.Visit(func(_ []byte, child *fastjson.Value) {
			settle(child)
		})
	case fastjson.TypeArray:
		items, _ := v.Array()
		for _, item := range items {
			settle(item)
		}
	}
}

// Key returns the dispatch key of the call
func (c *RawCall) Key() string {
	return DispatchKey(c.Section, c.Method)
}

// CatalogKey returns the key the knowledge base is authored under (original casing)
func (c *RawCall) CatalogKey() string {
	return c.Section + "." + c.Method
}

// DispatchKey derives the registry key: section as given, method lowercased
func DispatchKey(section, method string) string {
	return section + "." + strings.ToLower(method)
}

// EnrichedTx is the display-ready description of a call
type EnrichedTx struct {
	Type        EnrichedType           `json:"type"`
	SummaryHint string                 `json:"summaryHint,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// IsKnown reports whether a dedicated handler decoded the call
func (e *EnrichedTx) IsKnown() bool {
	return e != nil && e.Type == EnrichedKnown
}

// MaxDecimal bounds the token decimals a call may carry. Substrate balances
// fit in u128, so anything near this is already far beyond a real chain.
const MaxDecimal = 255

// ExplainRequest is the wire form of a call to enrich or explain
type ExplainRequest struct {
	Section string          `json:"section"`
	Method  string          `json:"method"`
	Args    json.RawMessage `json:"args,omitempty"`
	Token   string          `json:"token,omitempty"`
	Decimal *int            `json:"decimal,omitempty"`
	Chain   string          `json:"chain,omitempty"`
}

// Validate checks the fields every request needs
func (r *ExplainRequest) Validate() error {
	if strings.TrimSpace(r.Section) == "" {
		return fmt.Errorf("section is required")
	}
	if strings.TrimSpace(r.Method) == "" {
		return fmt.Errorf("method is required")
	}
	if r.Decimal != nil && *r.Decimal < 0 {
		return fmt.Errorf("decimal must not be negative")
	}
	if r.Decimal != nil && *r.Decimal > MaxDecimal {
		return fmt.Errorf("decimal must not exceed %d", MaxDecimal)
	}
	return nil
}

// ToRawCall resolves chain presets and parses the args
func (r *ExplainRequest) ToRawCall() (*RawCall, error) {
	token := r.Token
	decimal := 0
	if r.Decimal != nil {
		decimal = *r.Decimal
	}

	if r.Chain != "" {
		chain, ok := GetChain(r.Chain)
		if !ok {
			return nil, fmt.Errorf("unsupported chain: %s", r.Chain)
		}
		if token == "" {
			token = chain.Token
		}
		if r.Decimal == nil {
			decimal = chain.Decimals
		}
	}

	return ParseRawCall(r.Section, r.Method, r.Args, token, decimal)
}

// ExplanationResult holds the enriched call and the generated narrative
type ExplanationResult struct {
	Key         string      `json:"key"`
	Section     string      `json:"section"`
	Method      string      `json:"method"`
	Enriched    *EnrichedTx `json:"enriched"`
	Summary     string      `json:"summary"`             // Human-readable description, empty without an LLM
	Knowledge   string      `json:"knowledge,omitempty"` // Catalog entry used for generic calls
	Rules       string      `json:"rules,omitempty"`
	Prompt      string      `json:"prompt,omitempty"` // Only kept in verbose mode
	Cached      bool        `json:"cached"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ToJSON converts any struct to JSON string
func ToJSON(v interface{}) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}
