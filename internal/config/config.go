// Package config mirrors the backend's effective configuration. The backend
// owns config resolution (defaults, user file, per-syntax overrides); this
// side only caches what config_changed notifications report and reads values
// out of the cached documents.
package config

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Defaults used until the backend reports a value.
const (
	DefaultTabSize = 4
)

// Config holds one JSON document per view plus a global fallback document.
// Owned by the consumer goroutine; no lock.
type Config struct {
	global string
	views  map[string]string
}

// New creates an empty mirror.
func New() *Config {
	return &Config{
		global: "{}",
		views:  make(map[string]string),
	}
}

// Apply merges a config_changed changes object into the document for viewID.
// An empty viewID targets the global document. Keys are replaced wholesale,
// matching how the backend reports changes.
func (c *Config) Apply(viewID string, changes gjson.Result) {
	doc := c.doc(viewID)
	changes.ForEach(func(key, value gjson.Result) bool {
		if updated, err := sjson.SetRaw(doc, key.String(), value.Raw); err == nil {
			doc = updated
		}
		return true
	})

	if viewID == "" {
		c.global = doc
	} else {
		c.views[viewID] = doc
	}
}

// Forget drops the document for a closed view.
func (c *Config) Forget(viewID string) {
	delete(c.views, viewID)
}

// Get reads a value for a view, falling back to the global document.
func (c *Config) Get(viewID, path string) gjson.Result {
	if doc, ok := c.views[viewID]; ok {
		if v := gjson.Get(doc, path); v.Exists() {
			return v
		}
	}
	return gjson.Get(c.global, path)
}

// TabSize returns the tab width for a view.
func (c *Config) TabSize(viewID string) uint64 {
	if v := c.Get(viewID, "tab_size"); v.Exists() {
		return v.Uint()
	}
	return DefaultTabSize
}

// TranslateTabsToSpaces reports whether the tab key inserts spaces.
func (c *Config) TranslateTabsToSpaces(viewID string) bool {
	return c.Get(viewID, "translate_tabs_to_spaces").Bool()
}

// AutoIndent reports whether new lines copy the previous indentation.
func (c *Config) AutoIndent(viewID string) bool {
	return c.Get(viewID, "auto_indent").Bool()
}

// WordWrap reports whether the backend soft-wraps long lines.
func (c *Config) WordWrap(viewID string) bool {
	return c.Get(viewID, "word_wrap").Bool()
}

func (c *Config) doc(viewID string) string {
	if viewID == "" {
		return c.global
	}
	if doc, ok := c.views[viewID]; ok {
		return doc
	}
	return "{}"
}
