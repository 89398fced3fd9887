package store

import (
	"encoding/json"
	"time"
)

// BundleVersion tags exported bundles so future imports can detect old dumps.
const BundleVersion = "1"

// Bundle is a full keyed export of the store.
type Bundle struct {
	Version    string                     `json:"version"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Data       map[string]json.RawMessage `json:"data"`
}

// ExportAll serializes every present canonical key into a bundle. Absent keys
// are omitted rather than exported as null.
func (kv *KV) ExportAll() *Bundle {
	b := &Bundle{
		Version:    BundleVersion,
		ExportedAt: time.Now(),
		Data:       make(map[string]json.RawMessage),
	}
	for _, key := range canonicalKeys {
		raw, ok := kv.getRaw(key)
		if !ok {
			continue
		}
		b.Data[key] = json.RawMessage(raw)
	}
	return b
}

// ImportAll overwrites only the canonical keys present in the bundle. Unknown
// keys are ignored; keys absent from the bundle keep their current value.
func (kv *KV) ImportAll(b *Bundle) int {
	imported := 0
	for _, key := range canonicalKeys {
		raw, ok := b.Data[key]
		if !ok || len(raw) == 0 {
			continue
		}
		if Save(kv, key, raw) {
			imported++
		}
	}
	return imported
}
