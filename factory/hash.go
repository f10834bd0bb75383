package factory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
)

// ConfigHash returns a canonical hash of config. Keys are sorted and values
// JSON-encoded; values JSON cannot encode (clients, functions) fall back to
// their Go-syntax representation, so injected objects hash by identity.
func ConfigHash(config map[string]any) string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%q=", k)
		encoded, err := json.Marshal(config[k])
		if err != nil {
			fmt.Fprintf(h, "%#v", config[k])
		} else {
			h.Write(encoded)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// mergeConfig returns defaults overlaid with overrides; overrides win.
func mergeConfig(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
