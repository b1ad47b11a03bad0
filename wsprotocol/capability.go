package wsprotocol

// Capability is a feature the server advertises to connecting clients in
// its serverInfo message. Clients must not rely on a capability the server
// hasn't advertised.
type Capability string

const (
	// CapabilityClientPublish allows clients to advertise channels and
	// publish message data to the server.
	CapabilityClientPublish Capability = "clientPublish"
	// CapabilityParameters allows clients to get and set parameters.
	CapabilityParameters Capability = "parameters"
	// CapabilityParametersSubscribe allows clients to subscribe to
	// parameter value changes.
	CapabilityParametersSubscribe Capability = "parametersSubscribe"
	// CapabilityTime means the server periodically broadcasts its
	// notion of the current time via a TimeData binary message.
	CapabilityTime Capability = "time"
	// CapabilityServices allows clients to call registered services.
	CapabilityServices Capability = "services"
	// CapabilityAssets allows clients to fetch named assets.
	CapabilityAssets Capability = "assets"
)
