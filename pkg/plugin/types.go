package plugin

// Capability expresses optional side effects a plugin may request access to.
type Capability string

const (
	// CapabilityNetwork covers outbound RPC and HTTP calls.
	CapabilityNetwork Capability = "network"
	// CapabilitySigning covers submitting transactions signed with a configured key.
	CapabilitySigning Capability = "signing"
	// CapabilityExecution covers spawning local processes such as a compiler.
	CapabilityExecution Capability = "execution"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Version      string       `json:"version,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// State represents the lifecycle position of a plugin instance.
type State string

const (
	StateRegistered State = "registered"
	StateStarted    State = "started"
	StateStopped    State = "stopped"
)
