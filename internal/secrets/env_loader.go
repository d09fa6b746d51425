package secrets

import (
	"fmt"
	"os"
	"strings"
)

// EnvLoader returns a Loader for the named variables. A variable that is unset
// falls back to the file named by <NAME>_FILE, the mounted-secret convention of
// container runtimes. Unset names are omitted; an unreadable file is an error.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if k == "" {
				continue
			}
			if v := os.Getenv(k); v != "" {
				vals[k] = v
				continue
			}
			path := os.Getenv(k + "_FILE")
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator environment
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
