package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReadFile parses a flat YAML mapping of config keys, e.g.
//
//	HTTP_ADDR: ":9090"
//	GEMINI_DISCOVER_MODELS: false
//	CORS_ORIGINS: [https://app.example.com, https://admin.example.com]
//
// Scalars are stringified; sequences are joined with commas. Unknown keys are an error.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(k)
		if !known[key] {
			return nil, errors.Errorf("%s: unknown key %q", path, k)
		}
		switch val := v.(type) {
		case nil:
		case []any:
			items := make([]string, len(val))
			for i, item := range val {
				items[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(items, ",")
		case map[string]any:
			return nil, errors.Errorf("%s: key %q must be a scalar or a list", path, k)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}
