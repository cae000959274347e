package secrets

import (
	"fmt"
	"os"
	"strings"
)

// EnvLoader returns a Loader reading each key from the environment. When
// KEY is unset but KEY_FILE names a file, the trimmed file content is used,
// which suits secrets mounted by an orchestrator. Unset keys are omitted.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
				continue
			}
			path := os.Getenv(k + "_FILE")
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s_FILE: %w", k, err)
			}
			if v := strings.TrimSpace(string(data)); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}
