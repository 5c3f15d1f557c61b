// Package protocol implements the voxsync event channel wire format.
//
// Every frame is a JSON text message with a tagged envelope:
//
//	{"type": "status", "data": {"latency_ms": 12.5, "enabled": true, ...}}
//
// # Message Types
//
// Server to client:
//   - status:         live status snapshot (latency, devices, cpu usage)
//   - config_update:  full audio configuration
//   - profile_update: full voice profile
//
// Client to server:
//   - get_status:     request an immediate status frame (best effort)
//
// # Usage Example
//
//	msg, err := protocol.Decode(frame)
//	if err != nil {
//	    // malformed frame; drop it and keep reading
//	}
//	switch m := msg.(type) {
//	case protocol.StatusMessage:
//	    fmt.Println(m.Status.LatencyMs)
//	case protocol.UnknownMessage:
//	    // ignored
//	}
//
// Decode never fails on an unknown tag. Payload fields missing from a
// config_update or profile_update frame take their default values.
package protocol
