// Package discovery finds voice backends on the local network over mDNS.
//
// Backends advertise the "_voxsync._tcp" service type. The TXT record
// carries the backend version and the API root path. voxsync-mockd
// advertises itself with Advertise when started with --advertise.
//
// # Usage Example
//
//	backends, err := discovery.QuickScan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range backends {
//	    fmt.Printf("Found: %s -> %s\n", b.Instance, b.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Backends must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
