package custody_test

import (
	"testing"

	"github.com/gyber/go-custody"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainPreferences_ValueScan(t *testing.T) {
	prefs := custody.ChainPreferences{"ethereum": 12.5, "bsc": 5}

	value, err := prefs.Value()
	require.NoError(t, err)

	var scanned custody.ChainPreferences
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, prefs, scanned)

	var fromBytes custody.ChainPreferences
	require.NoError(t, fromBytes.Scan([]byte(value.(string))))
	assert.Equal(t, prefs, fromBytes)
}

func TestChainPreferences_ScanEmpty(t *testing.T) {
	for _, src := range []any{nil, "", []byte{}} {
		var prefs custody.ChainPreferences
		require.NoError(t, prefs.Scan(src))
		assert.NotNil(t, prefs)
		assert.Empty(t, prefs)
	}

	var prefs custody.ChainPreferences
	assert.Error(t, prefs.Scan(42))
	assert.Error(t, prefs.Scan("not json"))

	var nilPrefs custody.ChainPreferences
	value, err := nilPrefs.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)
}

func TestChainPreferences_Mutations(t *testing.T) {
	var prefs custody.ChainPreferences
	prefs.Add("polygon", 30)
	prefs.Add("ethereum", 20)
	prefs.Add("ethereum", 25)

	assert.True(t, prefs.Has("ethereum"))
	assert.Equal(t, 25.0, prefs.Gas("ethereum"))
	assert.Zero(t, prefs.Gas("bsc"))
	assert.Equal(t, []string{"ethereum", "polygon"}, prefs.Networks())

	clone := prefs.Clone()
	assert.True(t, prefs.Remove("polygon"))
	assert.False(t, prefs.Remove("polygon"))
	assert.True(t, clone.Has("polygon"))
	assert.Equal(t, []string{"ethereum"}, prefs.Networks())
}
