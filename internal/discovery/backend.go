package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Backend is a voice processing backend found on the local network
type Backend struct {
	// Instance is the advertised service instance name (e.g., "studio-pc")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio-pc.local.")
	Hostname string

	// IP is the preferred address, IPv4 when one is advertised
	IP string

	// Port is the REST API port
	Port int

	// Metadata contains the mDNS TXT record data.
	// Common fields: "version=0.3.0", "path=/"
	Metadata map[string]string

	// DiscoveredAt is when the backend answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the backend
func (b *Backend) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// BaseURL returns the HTTP base URL of the backend's REST API
func (b *Backend) BaseURL() string {
	return "http://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Backend) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
