// Package discovery implements the UDP discovery service:
// announce/query/response loops bound to one UDP socket, delivering
// accepted datagrams into a peerdir.Directory.
package discovery

// MessageType is the discovery payload's type field.
type MessageType string

const (
	TypeAnnounce MessageType = "ANNOUNCE"
	TypeQuery    MessageType = "QUERY"
	TypeResponse MessageType = "DISCOVERY_RESPONSE"
)

// Capability advertises what this node's session server supports.
type Capability struct {
	AuthModes []string `json:"authModes"`
	Resume    bool     `json:"resume"`
}

// Message is the self-contained UDP discovery payload. A QUERY carries
// only Proto/Type/TimestampUTC; the rest are empty.
type Message struct {
	Proto         string     `json:"proto"`
	Type          MessageType `json:"type"`
	DeviceID      string     `json:"deviceId,omitempty"`
	DeviceName    string     `json:"deviceName,omitempty"`
	TCPPort       int        `json:"tcpPort,omitempty"`
	DiscoveryPort int        `json:"discoveryPort,omitempty"`
	TimestampUTC  string     `json:"timestampUtc"`
	Capability    *Capability `json:"capability,omitempty"`
}
