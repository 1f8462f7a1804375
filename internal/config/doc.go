// SPDX-License-Identifier: MPL-2.0

// Package config handles bridge configuration using Viper with CUE as the file format.
//
// Configuration is loaded from addonbridge.cue in the user config directory
// (~/.config/addonbridge on Linux, ~/Library/Application Support/addonbridge on
// macOS, %APPDATA%\addonbridge on Windows) or, failing that, from the current
// directory. Every key can be overridden through an ADDONBRIDGE_ environment
// variable, with dots replaced by underscores (ADDONBRIDGE_GATEWAY_ADDR).
//
// Files are validated against an embedded CUE schema (config_schema.cue) before
// they reach Viper; Config.Validate covers what the schema cannot express.
package config
