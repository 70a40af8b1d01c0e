package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	kb := Default()
	assert.NotEmpty(t, kb.Version())
	assert.Greater(t, kb.Len(), 40)

	keys := kb.Keys()
	assert.Len(t, keys, kb.Len())
	assert.IsIncreasing(t, keys)

	for _, key := range keys {
		section, method, ok := strings.Cut(key, ".")
		assert.True(t, ok && section != "" && method != "", "malformed key %q", key)

		entry, found := kb.Entry(key)
		require.True(t, found)
		assert.NotEmpty(t, entry.Function, key)
		assert.NotEmpty(t, entry.Description, key)
	}
}

func TestLookup(t *testing.T) {
	result := Lookup("balances.transferKeepAlive")
	assert.JSONEq(t, `{
		"function": "transfer_keep_alive(dest: MultiAddress, value: Compact<Balance>)",
		"description": "Same as transfer_allow_death, but the call fails if it would kill the sender account."
	}`, result)
	assert.True(t, strings.HasPrefix(result, `{"function":`))

	// Keys are case-sensitive and never normalized
	assert.Equal(t, NoInformation, Lookup("balances.transferkeepalive"))
	assert.Equal(t, NoInformation, Lookup("Balances.transferKeepAlive"))
	assert.Equal(t, NoInformation, Lookup("unknownPallet.someCall"))
	assert.Equal(t, NoInformation, Lookup(""))
	assert.Equal(t, "No additional information available.", NoInformation)
}

func TestLoad(t *testing.T) {
	data := []byte(`{"version":"test","entries":{
		"custom.doThing":{"function":"do_thing(x: u8)","description":"Does the \"thing\"."},
		"custom.partial":{"function":"partial()"}
	}}`)

	kb, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, "test", kb.Version())
	assert.Equal(t, 2, kb.Len())
	assert.JSONEq(t, `{"function":"do_thing(x: u8)","description":"Does the \"thing\"."}`, kb.Lookup("custom.doThing"))
	assert.JSONEq(t, `{"function":"partial()","description":""}`, kb.Lookup("custom.partial"))
	assert.Equal(t, NoInformation, kb.Lookup("balances.transferKeepAlive"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"not an object", `[1,2]`},
		{"missing entries", `{"version":"1"}`},
		{"entries not an object", `{"entries":[]}`},
		{"entry not an object", `{"entries":{"a.b":"text"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	kb, err := New("")
	require.NoError(t, err)
	assert.Same(t, Default(), kb)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"override","entries":{"a.b":{"function":"b()","description":"B."}}}`), 0o600))

	kb, err = New(path)
	require.NoError(t, err)
	assert.Equal(t, "override", kb.Version())
	assert.Equal(t, []string{"a.b"}, kb.Keys())

	_, err = New(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLookup_Concurrent(t *testing.T) {
	expected := Lookup("staking.bond")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, expected, Lookup("staking.bond"))
				assert.Equal(t, NoInformation, Lookup("staking.unknown"))
			}
		}()
	}
	wg.Wait()
}
