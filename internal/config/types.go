// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// LogLevelDebug logs dispatch diagnostics.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle transitions.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only errors.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidDuration is returned when a duration setting is not positive.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidAddr is returned when the gateway address is not host:port.
	ErrInvalidAddr = errors.New("invalid listen address")
	// ErrInvalidPath is returned when a path setting is empty or whitespace-only.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidScriptPrefix is returned when the script prefix contains a path separator.
	ErrInvalidScriptPrefix = errors.New("invalid script prefix")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level the bridge logs at.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidDurationError is returned when a duration setting is zero or negative.
	InvalidDurationError struct {
		Field string
		Value time.Duration
	}

	// InvalidAddrError is returned when gateway.addr does not split into host and port.
	InvalidAddrError struct {
		Value string
		Err   error
	}

	// InvalidPathError is returned when a path setting is empty or whitespace-only.
	InvalidPathError struct {
		Field string
		Value string
	}

	// InvalidScriptPrefixError is returned when script_prefix would escape the mods directory.
	InvalidScriptPrefixError struct {
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the bridge configuration.
	Config struct {
		// DataDir holds modules.txt and the default templates database.
		DataDir string `json:"data_dir" mapstructure:"data_dir"`
		// ModsDir holds mod scripts. Relative paths resolve against DataDir.
		ModsDir string `json:"mods_dir" mapstructure:"mods_dir"`
		// ScriptPrefix is the file prefix every mod script carries.
		ScriptPrefix string `json:"script_prefix" mapstructure:"script_prefix"`
		// Sweep configures unload cleanup
		Sweep SweepConfig `json:"sweep" mapstructure:"sweep"`
		// Log configures logging
		Log LogConfig `json:"log" mapstructure:"log"`
		// Gateway configures the websocket endpoint
		Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`
		// Tick configures the host loop
		Tick TickConfig `json:"tick" mapstructure:"tick"`
		// Templates configures the template store
		Templates TemplatesConfig `json:"templates" mapstructure:"templates"`
		// Watch configures hot reload
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// SweepConfig configures the unload sweep.
	SweepConfig struct {
		// Legacy clears every entity entry on unload regardless of owner.
		Legacy bool `json:"legacy" mapstructure:"legacy"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// GatewayConfig configures the websocket gateway.
	GatewayConfig struct {
		Addr string `json:"addr" mapstructure:"addr"`
	}

	// TickConfig configures the host tick loop.
	TickConfig struct {
		Interval time.Duration `json:"interval" mapstructure:"interval"`
	}

	// TemplatesConfig configures the sqlite template store.
	TemplatesConfig struct {
		// Path is the database file. Empty means <data_dir>/templates.db.
		Path string `json:"path" mapstructure:"path"`
	}

	// WatchConfig configures the mod script watcher.
	WatchConfig struct {
		Enabled  bool          `json:"enabled" mapstructure:"enabled"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s: duration %s must be positive", e.Field, e.Value)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// Error implements the error interface for InvalidAddrError.
func (e *InvalidAddrError) Error() string {
	return fmt.Sprintf("gateway.addr: %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrInvalidAddr for errors.Is() compatibility.
func (e *InvalidAddrError) Unwrap() error { return ErrInvalidAddr }

// Error implements the error interface for InvalidPathError.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s: path %q must not be empty", e.Field, e.Value)
}

// Unwrap returns ErrInvalidPath for errors.Is() compatibility.
func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// Error implements the error interface for InvalidScriptPrefixError.
func (e *InvalidScriptPrefixError) Error() string {
	return fmt.Sprintf("script_prefix %q must not contain a path separator", e.Value)
}

// Unwrap returns ErrInvalidScriptPrefix for errors.Is() compatibility.
func (e *InvalidScriptPrefixError) Unwrap() error { return ErrInvalidScriptPrefix }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is()
// matches both the config sentinel and each field sentinel.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid returns whether the Config has valid fields, with one error per
// invalid field.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, &InvalidPathError{Field: "data_dir", Value: c.DataDir})
	}
	if strings.TrimSpace(c.ModsDir) == "" {
		errs = append(errs, &InvalidPathError{Field: "mods_dir", Value: c.ModsDir})
	}
	if strings.ContainsAny(c.ScriptPrefix, `/\`) {
		errs = append(errs, &InvalidScriptPrefixError{Value: c.ScriptPrefix})
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, _, err := net.SplitHostPort(c.Gateway.Addr); err != nil {
		errs = append(errs, &InvalidAddrError{Value: c.Gateway.Addr, Err: err})
	}
	if c.Tick.Interval <= 0 {
		errs = append(errs, &InvalidDurationError{Field: "tick.interval", Value: c.Tick.Interval})
	}
	if c.Watch.Debounce <= 0 {
		errs = append(errs, &InvalidDurationError{Field: "watch.debounce", Value: c.Watch.Debounce})
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// Validate returns an *InvalidConfigError listing every invalid field, or nil.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
