// Package keymap translates key names into annotation events. Key names follow
// the browser KeyboardEvent.key values ("t", "ArrowLeft", "0").
package keymap

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/menta2k/frame-annotator/pkg/annotation"
)

// Keymap binds key names to actions. Digits not bound to anything else
// select the class with that number.
type Keymap struct {
	bindings map[string]annotation.Action
}

// Binding is one key and the action it triggers
type Binding struct {
	Key    string `json:"key"`
	Action string `json:"action"`
}

// defaultBindings is the stock layout
var defaultBindings = map[string]annotation.Action{
	"t":          annotation.RotateCCW15,
	"y":          annotation.RotateCCW5,
	"u":          annotation.RotateCCW1,
	"p":          annotation.RotateCW15,
	"o":          annotation.RotateCW5,
	"i":          annotation.RotateCW1,
	"d":          annotation.GrowLength,
	"a":          annotation.ShrinkLength,
	"w":          annotation.GrowHeight,
	"s":          annotation.ShrinkHeight,
	"ArrowLeft":  annotation.MoveLeft,
	"ArrowRight": annotation.MoveRight,
	"ArrowUp":    annotation.MoveUp,
	"ArrowDown":  annotation.MoveDown,
	"j":          annotation.Commit,
	"k":          annotation.Skip,
	"x":          annotation.AbortVideo,
	"z":          annotation.AbortAll,
}

// Default returns the stock layout
func Default() *Keymap {
	km := &Keymap{bindings: make(map[string]annotation.Action, len(defaultBindings))}
	for k, a := range defaultBindings {
		km.bindings[k] = a
	}
	return km
}

// New returns the stock layout with overrides applied. Overrides map a key
// name to an action name; the action's previous key is unbound.
func New(overrides map[string]string) (*Keymap, error) {
	km := Default()
	if err := km.Apply(overrides); err != nil {
		return nil, err
	}
	return km, nil
}

// Apply rebinds keys
func (km *Keymap) Apply(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("empty key name in keymap")
		}
		action, err := annotation.ParseAction(overrides[key])
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if action == annotation.SelectClass {
			return fmt.Errorf("key %q: %s is bound to the digit keys", key, action)
		}
		for k, a := range km.bindings {
			if a == action && k != key {
				delete(km.bindings, k)
			}
		}
		km.bindings[key] = action
	}
	return nil
}

// Lookup returns the event for a key press
func (km *Keymap) Lookup(key string) (annotation.Event, bool) {
	if a, ok := km.bindings[key]; ok {
		return annotation.Key(a), true
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		n, _ := strconv.Atoi(key)
		return annotation.Class(n), true
	}
	return annotation.Event{}, false
}

// KeyFor returns the key bound to an action
func (km *Keymap) KeyFor(action annotation.Action) (string, bool) {
	for k, a := range km.bindings {
		if a == action {
			return k, true
		}
	}
	return "", false
}

// Bindings lists the bindings in action order, for help text
func (km *Keymap) Bindings() []Binding {
	out := make([]Binding, 0, len(km.bindings)+1)
	for _, a := range annotation.Actions() {
		if a == annotation.SelectClass {
			out = append(out, Binding{Key: "0-9", Action: a.String()})
			continue
		}
		if k, ok := km.KeyFor(a); ok {
			out = append(out, Binding{Key: k, Action: a.String()})
		}
	}
	return out
}
