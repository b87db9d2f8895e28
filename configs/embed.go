// Package configs embeds the configuration template written by
// `docindex config init`. Every key in the template is commented with its
// default; see internal/config for the loading order.
package configs

import _ "embed"

// ConfigTemplate is written to the user config path by `docindex config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
