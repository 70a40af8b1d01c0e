package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/valyala/fastjson"
)

// NoInformation is returned by Lookup for keys the catalog does not describe
const NoInformation = "No additional information available."

//go:embed data/knowledge_base.json
var embeddedCatalog []byte

// Entry describes one call in the catalog
type Entry struct {
	Function    string `json:"function"`
	Description string `json:"description"`
}

// KnowledgeBase is a read-only catalog of call descriptions keyed by "<section>.<method>"
// in the catalog's authored casing. It is never mutated after loading.
type KnowledgeBase struct {
	version    string
	entries    map[string]Entry
	serialized map[string]string
}

var defaultBase = mustLoad(embeddedCatalog)

// Default returns the catalog shipped with the binary
func Default() *KnowledgeBase {
	return defaultBase
}

// New returns the embedded catalog, or the catalog stored at path when path is set
func New(path string) (*KnowledgeBase, error) {
	if path == "" {
		return defaultBase, nil
	}
	return LoadFile(path)
}

// LoadFile reads a catalog from disk
func LoadFile(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a catalog of the form {"version": "...", "entries": {"<key>": {"function", "description"}}}
func Load(data []byte) (*KnowledgeBase, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	if _, err := root.Object(); err != nil {
		return nil, fmt.Errorf("knowledge base must be a JSON object: %w", err)
	}
	entries := objectField(root, "entries")
	if entries == nil {
		return nil, fmt.Errorf("knowledge base has no entries object")
	}

	kb := &KnowledgeBase{
		version:    string(root.GetStringBytes("version")),
		entries:    make(map[string]Entry, entries.Len()),
		serialized: make(map[string]string, entries.Len()),
	}

	var arena fastjson.Arena
	var visitErr error
	entries.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		if v.Type() != fastjson.TypeObject {
			visitErr = fmt.Errorf("knowledge base entry %q is not an object", key)
			return
		}

		entry := Entry{
			Function:    string(v.GetStringBytes("function")),
			Description: string(v.GetStringBytes("description")),
		}
		name := string(key)
		kb.entries[name] = entry
		kb.serialized[name] = serializeEntry(&arena, entry)
		arena.Reset()
	})
	if visitErr != nil {
		return nil, visitErr
	}

	return kb, nil
}

func mustLoad(data []byte) *KnowledgeBase {
	kb, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base is invalid: %v", err))
	}
	return kb
}

func objectField(v *fastjson.Value, key string) *fastjson.Object {
	field := v.Get(key)
	if field == nil {
		return nil
	}
	o, err := field.Object()
	if err != nil {
		return nil
	}
	return o
}

// serializeEntry renders an entry with its fields in catalog order
func serializeEntry(arena *fastjson.Arena, entry Entry) string {
	o := arena.NewObject()
	o.Set("function", arena.NewString(entry.Function))
	o.Set("description", arena.NewString(entry.Description))
	return string(o.MarshalTo(nil))
}

// Lookup returns the serialized entry for callKey, or NoInformation when the
// catalog has none. Keys are matched case-sensitively.
func (kb *KnowledgeBase) Lookup(callKey string) string {
	if s, ok := kb.serialized[callKey]; ok {
		return s
	}
	return NoInformation
}

// Entry returns the decoded entry for callKey
func (kb *KnowledgeBase) Entry(callKey string) (Entry, bool) {
	entry, ok := kb.entries[callKey]
	return entry, ok
}

// Version returns the catalog version, empty when the asset does not carry one
func (kb *KnowledgeBase) Version() string {
	return kb.version
}

// Len returns the number of catalog entries
func (kb *KnowledgeBase) Len() int {
	return len(kb.entries)
}

// Keys returns every catalog key in sorted order
func (kb *KnowledgeBase) Keys() []string {
	keys := make([]string, 0, len(kb.entries))
	for key := range kb.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup queries the embedded catalog
func Lookup(callKey string) string {
	return defaultBase.Lookup(callKey)
}
