package config

import (
	"fmt"
	"os"
	"plugin"
)

// ConfigureFunc is the signature the user's top-level configuration
// function must have. It is invoked once per reconciliation pass.
type ConfigureFunc func(*Configurator)

// LoadUserConfig compiles a user configuration down to a ConfigureFunc by
// opening it as a Go plugin (built with `go build -buildmode=plugin`) and
// resolving its exported "Configure" symbol — the idiomatic stdlib answer
// for loading user-supplied code that calls back into a capability object,
// without embedding a scripting engine.
//
// If path does not exist, LoadUserConfig returns a no-op ConfigureFunc and
// no error, so the daemon continues with zero user modules rather than
// refusing to start.
func LoadUserConfig(path string) (ConfigureFunc, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return func(*Configurator) {}, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup("Configure")
	if err != nil {
		return nil, fmt.Errorf("config: plugin %s has no Configure symbol: %w", path, err)
	}
	fn, ok := sym.(func(*Configurator))
	if !ok {
		return nil, fmt.Errorf("config: plugin %s's Configure has the wrong signature", path)
	}
	return fn, nil
}
