package nav

// Capability names that a planner service may advertise in its status
// document.
const (
	// CapabilityComputePath is required; it marks a service that accepts
	// plan requests.
	CapabilityComputePath = "compute-path"

	// CapabilityCancel marks a service that claims to support canceling an
	// in-flight plan request. The harness does not implement the client side
	// of cancellation; see harness.ErrNotImplemented.
	CapabilityCancel = "cancel"
)
