package api

type (
	// CapabilityType identifies how a declared capability is executed
	CapabilityType string

	// CapabilitySpec declares a capability in a capability file
	CapabilitySpec struct {
		Name        string         `json:"name" yaml:"name"`
		Type        CapabilityType `json:"type" yaml:"type"`
		Description string         `json:"description,omitempty" yaml:"description,omitempty"`
		HTTP        *HTTPConfig    `json:"http,omitempty" yaml:"http,omitempty"`
		Script      string         `json:"script,omitempty" yaml:"script,omitempty"`
		Args        []Name         `json:"args,omitempty" yaml:"args,omitempty"`
		ResultPath  string         `json:"resultPath,omitempty" yaml:"resultPath,omitempty"`
	}

	// HTTPConfig configures a capability reached over HTTP
	HTTPConfig struct {
		Endpoint string `json:"endpoint" yaml:"endpoint"`
		Timeout  int64  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	}

	// CapabilityRequest is the body POSTed to HTTP capabilities
	CapabilityRequest struct {
		Arguments Args     `json:"arguments"`
		Metadata  Metadata `json:"metadata,omitempty"`
	}

	// CapabilityResponse is the body expected back from HTTP capabilities
	CapabilityResponse struct {
		Success bool   `json:"success"`
		Result  any    `json:"result,omitempty"`
		Error   string `json:"error,omitempty"`
	}
)

const (
	CapabilityHTTP CapabilityType = "http"
	CapabilityLua  CapabilityType = "lua"
	CapabilityAle  CapabilityType = "ale"
)
