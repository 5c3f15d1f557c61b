package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/muurk/voxsync/internal/api"
)

// Message type tags carried in the envelope "type" field
const (
	TypeStatus        = "status"
	TypeConfigUpdate  = "config_update"
	TypeProfileUpdate = "profile_update"
	TypeGetStatus     = "get_status"
)

// Envelope is the JSON frame shape used in both directions
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded server-to-client message.
// The set of implementations is closed: StatusMessage, ConfigUpdateMessage,
// ProfileUpdateMessage and UnknownMessage.
type Inbound interface {
	// MessageType returns the envelope tag
	MessageType() string
	inbound()
}

// StatusMessage carries a live status snapshot
type StatusMessage struct {
	Status api.StatusSnapshot
}

// ConfigUpdateMessage carries a configuration to adopt wholesale
type ConfigUpdateMessage struct {
	Config api.Config
}

// ProfileUpdateMessage carries a profile to adopt wholesale
type ProfileUpdateMessage struct {
	Profile api.Profile
}

// UnknownMessage is any frame with an unrecognized tag.
// Receivers ignore it.
type UnknownMessage struct {
	Type string
	Data json.RawMessage
}

func (StatusMessage) MessageType() string        { return TypeStatus }
func (ConfigUpdateMessage) MessageType() string  { return TypeConfigUpdate }
func (ProfileUpdateMessage) MessageType() string { return TypeProfileUpdate }
func (m UnknownMessage) MessageType() string     { return m.Type }

func (StatusMessage) inbound()        {}
func (ConfigUpdateMessage) inbound()  {}
func (ProfileUpdateMessage) inbound() {}
func (UnknownMessage) inbound()       {}

// Decode parses one text frame.
// An unrecognized tag is not an error. A frame that is not a JSON envelope,
// or a known tag whose payload does not decode, yields a channel error.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, api.NewChannelError("malformed frame", err)
	}
	if env.Type == "" {
		return nil, api.NewChannelError("frame has no type", nil)
	}

	switch env.Type {
	case TypeStatus:
		var s api.StatusSnapshot
		if err := decodePayload(env, &s); err != nil {
			return nil, err
		}
		return StatusMessage{Status: s}, nil

	case TypeConfigUpdate:
		c := api.DefaultConfig()
		if err := decodePayload(env, &c); err != nil {
			return nil, err
		}
		return ConfigUpdateMessage{Config: c}, nil

	case TypeProfileUpdate:
		p := api.DefaultProfile()
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return ProfileUpdateMessage{Profile: p}, nil

	default:
		return UnknownMessage{Type: env.Type, Data: env.Data}, nil
	}
}

// decodePayload requires a JSON object payload for known tags
func decodePayload(env Envelope, out interface{}) error {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return api.NewChannelError(fmt.Sprintf("%s frame has no object payload", env.Type), nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return api.NewChannelError(fmt.Sprintf("malformed %s payload", env.Type), err)
	}
	return nil
}

// Encode builds an envelope frame with an optional payload
func Encode(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// EncodeGetStatus builds the best-effort status request frame
func EncodeGetStatus() []byte {
	data, _ := Encode(TypeGetStatus, nil)
	return data
}

// EncodeStatus builds a status frame
func EncodeStatus(s api.StatusSnapshot) ([]byte, error) {
	return Encode(TypeStatus, s)
}

// EncodeConfigUpdate builds a config_update frame
func EncodeConfigUpdate(c api.Config) ([]byte, error) {
	return Encode(TypeConfigUpdate, c)
}

// EncodeProfileUpdate builds a profile_update frame
func EncodeProfileUpdate(p api.Profile) ([]byte, error) {
	return Encode(TypeProfileUpdate, p)
}
