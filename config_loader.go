package serviced

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes the environment variables that override loaded export
// config fields.
const envPrefix = "SERVICED_"

// ComponentConfig is the file-level description of one exported component.
// The loader does not interpret it; the caller's component builder turns each
// entry into a ComponentWrapperSpec, keeping the generator contract opaque to
// this package.
type ComponentConfig struct {
	// Name is the wrapper type name to generate.
	Name string `yaml:"name" toml:"name"`

	// Service is the name the underlying object is resolved by.
	Service string `yaml:"service" toml:"service"`

	// Description optionally describes the component.
	Description string `yaml:"description" toml:"description"`
}

// ComponentBuilder turns a loaded component entry into a wrapper generator.
type ComponentBuilder func(ComponentConfig) (ComponentWrapperSpec, error)

// exportFileConfig is the on-disk shape of an export spec.
type exportFileConfig struct {
	ApplicationName    string            `yaml:"applicationName" toml:"applicationName"`
	ApplicationID      string            `yaml:"applicationId" toml:"applicationId"`
	ActivationMode     string            `yaml:"activationMode" toml:"activationMode"`
	Description        string            `yaml:"description" toml:"description"`
	Roles              []string          `yaml:"roles" toml:"roles"`
	OutputModuleName   string            `yaml:"outputModuleName" toml:"outputModuleName"`
	UseManagedResolver bool              `yaml:"useManagedResolver" toml:"useManagedResolver"`
	ContextResources   []string          `yaml:"contextResources" toml:"contextResources"`
	Components         []ComponentConfig `yaml:"components" toml:"components"`
}

// LoadExportSpec builds a ComponentExportSpec from a YAML or TOML export
// config file (selected by extension), applies SERVICED_* environment
// overrides, normalizes the role list, and materializes the component entries
// through the given builder.
//
// The returned spec is ready for Export: RefreshRoles has already run.
func LoadExportSpec(path string, builder ComponentBuilder) (*ComponentExportSpec, error) {
	if builder == nil {
		return nil, ErrComponentBuilderNil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export config %q: %w", path, err)
	}

	var cfg exportFileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(payload, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML export config %q: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(payload, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML export config %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, ext)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	spec := &ComponentExportSpec{
		ApplicationName:    cfg.ApplicationName,
		ApplicationID:      cfg.ApplicationID,
		Description:        cfg.Description,
		OutputModuleName:   cfg.OutputModuleName,
		UseManagedResolver: cfg.UseManagedResolver,
		ContextResources:   cfg.ContextResources,
	}
	if strings.EqualFold(cfg.ActivationMode, "server") {
		spec.ActivationMode = ActivationModeServer
	}

	for _, raw := range cfg.Roles {
		spec.AddRole(raw)
	}
	if err := RefreshRoles(spec); err != nil {
		return nil, err
	}

	for i, entry := range cfg.Components {
		component, err := builder(entry)
		if err != nil {
			return nil, fmt.Errorf("building component %d (%s): %w", i, entry.Name, err)
		}
		spec.AddComponent(component)
	}

	return spec, nil
}

// applyEnvOverrides overlays SERVICED_* environment variables onto the loaded
// config. String values are coerced to the target field's type, so boolean
// overrides accept the canonical boolean literals only.
func applyEnvOverrides(cfg *exportFileConfig) error {
	overrides := map[string]any{
		"APPLICATION_NAME":     &cfg.ApplicationName,
		"APPLICATION_ID":       &cfg.ApplicationID,
		"ACTIVATION_MODE":      &cfg.ActivationMode,
		"DESCRIPTION":          &cfg.Description,
		"OUTPUT_MODULE_NAME":   &cfg.OutputModuleName,
		"USE_MANAGED_RESOLVER": &cfg.UseManagedResolver,
	}

	for suffix, target := range overrides {
		raw, ok := os.LookupEnv(envPrefix + suffix)
		if !ok {
			continue
		}
		field := reflect.ValueOf(target).Elem()
		converted, err := cast.FromType(raw, field.Type())
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, suffix, raw, err)
		}
		field.Set(reflect.ValueOf(converted))
	}
	return nil
}
