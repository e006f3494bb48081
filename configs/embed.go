// Package configs embeds the configuration template written by
// `catindex config init`.
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration.
//
//go:embed config.example.yaml
var ConfigTemplate string
