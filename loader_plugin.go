package serviced

import (
	"fmt"
	"plugin"
)

// pluginModuleLoader loads companion modules as plugin objects. This is the
// production ModuleLoader; tests substitute in-memory loaders.
type pluginModuleLoader struct{}

// Load opens the plugin object at the given path.
func (pluginModuleLoader) Load(path string) (ResolvedModule, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening companion module %q: %w", path, err)
	}
	return pluginModule{p}, nil
}

// LoadCanonical opens the plugin object by its canonical identity. Plugin
// resolution has no search path of its own, so the identity is handed to the
// system loader as given, with the module suffix appended when missing.
func (l pluginModuleLoader) LoadCanonical(identity string) (ResolvedModule, error) {
	if len(identity) < len(ModuleSuffix) || identity[len(identity)-len(ModuleSuffix):] != ModuleSuffix {
		identity += ModuleSuffix
	}
	return l.Load(identity)
}

// pluginModule adapts *plugin.Plugin to the ResolvedModule interface.
type pluginModule struct {
	p *plugin.Plugin
}

// Lookup locates an exported symbol in the plugin.
func (m pluginModule) Lookup(symbol string) (any, error) {
	sym, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("looking up symbol %q: %w", symbol, err)
	}
	return sym, nil
}
