package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/frame-annotator/pkg/annotation"
)

func TestDefaultBindings(t *testing.T) {
	km := Default()
	tests := map[string]annotation.Action{
		"t": annotation.RotateCCW15, "y": annotation.RotateCCW5, "u": annotation.RotateCCW1,
		"p": annotation.RotateCW15, "o": annotation.RotateCW5, "i": annotation.RotateCW1,
		"d": annotation.GrowLength, "a": annotation.ShrinkLength,
		"w": annotation.GrowHeight, "s": annotation.ShrinkHeight,
		"ArrowLeft": annotation.MoveLeft, "ArrowRight": annotation.MoveRight,
		"ArrowUp": annotation.MoveUp, "ArrowDown": annotation.MoveDown,
		"j": annotation.Commit, "k": annotation.Skip,
		"x": annotation.AbortVideo, "z": annotation.AbortAll,
	}
	for key, want := range tests {
		ev, ok := km.Lookup(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, annotation.Key(want), ev, "key %s", key)
	}

	// Every bindable action except class selection has a key
	for _, a := range annotation.Actions() {
		if a == annotation.SelectClass {
			continue
		}
		_, ok := km.KeyFor(a)
		assert.True(t, ok, "action %s unbound", a)
	}
}

func TestDigitsSelectClass(t *testing.T) {
	km := Default()
	for d := 0; d <= 9; d++ {
		ev, ok := km.Lookup(string(rune('0' + d)))
		require.True(t, ok)
		assert.Equal(t, annotation.Class(d), ev)
	}
	_, ok := km.Lookup("q")
	assert.False(t, ok)
	_, ok = km.Lookup("10")
	assert.False(t, ok)
}

func TestOverrides(t *testing.T) {
	km, err := New(map[string]string{"Enter": "commit", "1": "skip"})
	require.NoError(t, err)

	ev, ok := km.Lookup("Enter")
	require.True(t, ok)
	assert.Equal(t, annotation.Key(annotation.Commit), ev)

	_, ok = km.Lookup("j")
	assert.False(t, ok, "old commit key should be unbound")

	ev, _ = km.Lookup("1")
	assert.Equal(t, annotation.Key(annotation.Skip), ev)
	ev, _ = km.Lookup("2")
	assert.Equal(t, annotation.Class(2), ev)
}

func TestOverrideErrors(t *testing.T) {
	_, err := New(map[string]string{"q": "teleport"})
	assert.Error(t, err)
	_, err = New(map[string]string{"q": "select_class"})
	assert.Error(t, err)
	_, err = New(map[string]string{"": "commit"})
	assert.Error(t, err)
}

func TestBindingsListing(t *testing.T) {
	b := Default().Bindings()
	assert.Len(t, b, len(annotation.Actions()))
	assert.Equal(t, Binding{Key: "u", Action: "rotate_ccw_1"}, b[0])
}
