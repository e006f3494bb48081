package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/pkg/version"
)

func TestVersionCmd_Outputs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "default",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "catindex "+version.Short())
				assert.Contains(t, out, "commit:")
				assert.Contains(t, out, "platform:")
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Short(), strings.TrimSpace(out))
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var info map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, version.Short(), info["version"])
				for _, key := range []string{"commit", "date", "go_version", "os", "arch"} {
					assert.Contains(t, info, key)
				}
			},
		},
		{
			name: "root flag",
			args: []string{"--version"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, "catindex version "+version.Short()+"\n", out)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given/When: running the command
			out, err := run(t, tt.args...)

			// Then: output matches the format
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestVersionCmd_JSONAndShortConflict(t *testing.T) {
	_, err := run(t, "version", "--json", "--short")

	assert.Error(t, err)
}

func TestPrintBuild(t *testing.T) {
	// Given a build from a modified git checkout
	info := version.BuildInfo{
		Version:   "v1.2.0",
		Commit:    "feedbeef",
		Date:      "2026-03-01T10:00:00Z",
		Modified:  true,
		VCS:       "git",
		Module:    "github.com/Aman-CERP/catindex",
		GoVersion: "go1.25.5",
		OS:        "linux",
		Arch:      "arm64",
	}

	// When it is printed
	var buf bytes.Buffer
	printBuild(&buf, info)

	// Then every field is shown and the local changes are called out
	out := buf.String()
	assert.Contains(t, out, "catindex v1.2.0")
	assert.Contains(t, out, "feedbeef (local changes)")
	assert.Contains(t, out, "2026-03-01T10:00:00Z")
	assert.Contains(t, out, "git")
	assert.Contains(t, out, "github.com/Aman-CERP/catindex")
	assert.Contains(t, out, "linux/arm64")
}
