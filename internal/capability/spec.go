package capability

import (
	"fmt"
	"os"

	"github.com/kode4food/cadence/internal/client"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

// Factory turns capability specs into registered capabilities
type Factory struct {
	client client.Client
	lua    *LuaEnv
	ale    *AleEnv
}

// specFile is the on-disk layout of a capability file
type specFile struct {
	Capabilities []*api.CapabilitySpec `json:"capabilities" yaml:"capabilities"`
}

// NewFactory creates a factory whose HTTP capabilities use cl
func NewFactory(cl client.Client) *Factory {
	return &Factory{
		client: cl,
		lua:    NewLuaEnv(),
		ale:    NewAleEnv(),
	}
}

// Build creates the capability described by spec
func (f *Factory) Build(spec *api.CapabilitySpec) (Capability, error) {
	if spec.Name == "" {
		return nil, ErrNameEmpty
	}
	switch spec.Type {
	case api.CapabilityHTTP:
		return NewHTTPCapability(
			f.client, spec.Name, spec.HTTP, spec.ResultPath,
		), nil
	case api.CapabilityLua:
		c, err := f.lua.Compile(spec.Script, spec.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		return c, nil
	case api.CapabilityAle:
		c, err := f.ale.Compile(spec.Script, spec.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s: %q",
			ErrUnknownType, spec.Name, spec.Type)
	}
}

// RegisterSpecs builds every spec and registers the results. Nothing is
// registered unless all specs build successfully
func (f *Factory) RegisterSpecs(
	r *Registry, specs []*api.CapabilitySpec,
) error {
	built := make(map[string]Capability, len(specs))
	seen := util.Set[string]{}
	for _, spec := range specs {
		if seen.Contains(spec.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicateSpecName, spec.Name)
		}
		seen.Add(spec.Name)
		c, err := f.Build(spec)
		if err != nil {
			return err
		}
		built[spec.Name] = c
	}
	for _, name := range util.Sorted(seen) {
		if err := r.Register(name, built[name]); err != nil {
			return err
		}
	}
	return nil
}

// LoadSpecs reads capability specs from a YAML or JSON file, chosen by
// extension
func LoadSpecs(path string) ([]*api.CapabilitySpec, error) {
	format, err := api.FormatForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpecFileFormat, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSpecs(data, format)
}

// ParseSpecs decodes a capability file's contents
func ParseSpecs(
	data []byte, format api.DefinitionFormat,
) ([]*api.CapabilitySpec, error) {
	var file specFile
	if err := api.Unmarshal(data, format, &file); err != nil {
		return nil, err
	}
	return file.Capabilities, nil
}
