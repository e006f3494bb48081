package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

func addConfigFlag(fs *pflag.FlagSet, p *string) {
	fs.StringVarP(p, "config", "c", "", "Path to a config file")
}

func addJSONFlag(fs *pflag.FlagSet, p *bool) {
	fs.BoolVar(p, "json", false, "Output as JSON")
}

func addYesFlag(fs *pflag.FlagSet, p *bool) {
	fs.BoolVarP(p, "yes", "y", false, "Skip the confirmation check")
}

// parseFields converts key=value pairs into an event field map.
// A key given twice keeps the last value.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", pair)
		}
		fields[key] = value
	}
	return fields, nil
}
