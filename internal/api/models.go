package api

import (
	"math"
)

// Allowed audio buffer sizes in samples
var BufferSizes = []int{128, 256, 512, 1024, 2048}

// Allowed sample rates in Hz
var SampleRates = []int{44100, 48000}

const (
	// DefaultBufferSize is the buffer size the backend starts with
	DefaultBufferSize = 512

	// DefaultSampleRate is the sample rate the backend starts with
	DefaultSampleRate = 48000

	// DefaultProfileName is the name of the profile a fresh session starts with
	DefaultProfileName = "Default"
)

// AudioDevice is one entry of GET /devices.
// A device can be an input, an output, or both depending on its channel counts.
type AudioDevice struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate,omitempty"`
}

// IsInput reports whether the device can capture audio
func (d AudioDevice) IsInput() bool {
	return d.MaxInputChannels > 0
}

// IsOutput reports whether the device can play audio
func (d AudioDevice) IsOutput() bool {
	return d.MaxOutputChannels > 0
}

// Config is the session-level audio configuration sent with POST /config.
//
// InputDevice and OutputDevice are nil until the user picks a device.
// Enabled may only become true while both devices are set.
type Config struct {
	InputDevice  *int `json:"input_device"`
	OutputDevice *int `json:"output_device"`
	BufferSize   int  `json:"buffer_size"`
	SampleRate   int  `json:"sample_rate"`
	Enabled      bool `json:"enabled"`
}

// DefaultConfig returns the configuration a session starts with
func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		SampleRate: DefaultSampleRate,
	}
}

// DevicesSelected reports whether both the input and output device are set
func (c Config) DevicesSelected() bool {
	return c.InputDevice != nil && c.OutputDevice != nil
}

// Clone returns a deep copy so callers never share device pointers with
// the canonical copy
func (c Config) Clone() Config {
	out := c
	if c.InputDevice != nil {
		v := *c.InputDevice
		out.InputDevice = &v
	}
	if c.OutputDevice != nil {
		v := *c.OutputDevice
		out.OutputDevice = &v
	}
	return out
}

// Equal compares two configurations field by field
func (c Config) Equal(o Config) bool {
	return intPtrEqual(c.InputDevice, o.InputDevice) &&
		intPtrEqual(c.OutputDevice, o.OutputDevice) &&
		c.BufferSize == o.BufferSize &&
		c.SampleRate == o.SampleRate &&
		c.Enabled == o.Enabled
}

// ConfigEdit is a partial configuration change made locally by the user.
// Nil fields are left untouched. ClearInput / ClearOutput unset a device.
type ConfigEdit struct {
	InputDevice  *int
	OutputDevice *int
	ClearInput   bool
	ClearOutput  bool
	BufferSize   *int
	SampleRate   *int
	Enabled      *bool
}

// Apply merges the edit into c and returns the result.
// If the merge leaves a device unset, Enabled is forced off.
func (e ConfigEdit) Apply(c Config) Config {
	out := c.Clone()
	if e.ClearInput {
		out.InputDevice = nil
	} else if e.InputDevice != nil {
		v := *e.InputDevice
		out.InputDevice = &v
	}
	if e.ClearOutput {
		out.OutputDevice = nil
	} else if e.OutputDevice != nil {
		v := *e.OutputDevice
		out.OutputDevice = &v
	}
	if e.BufferSize != nil {
		out.BufferSize = *e.BufferSize
	}
	if e.SampleRate != nil {
		out.SampleRate = *e.SampleRate
	}
	if e.Enabled != nil {
		out.Enabled = *e.Enabled
	}
	if !out.DevicesSelected() {
		out.Enabled = false
	}
	return out
}

// Profile is a named set of voice-transform parameters
type Profile struct {
	Name           string  `json:"name"`
	PitchShift     float64 `json:"pitch_shift"`     // semitones
	FormantShift   float64 `json:"formant_shift"`   // multiplier
	Resonance      float64 `json:"resonance"`       // percent
	Brightness     float64 `json:"brightness"`      // dB
	TimbreShift    float64 `json:"timbre_shift"`    // multiplier
	GenderStrength float64 `json:"gender_strength"` // percent
	BreathNoise    float64 `json:"breath_noise"`    // percent
}

// DefaultProfile returns the neutral profile a session starts with
func DefaultProfile() Profile {
	p := Profile{Name: DefaultProfileName}
	for _, r := range Params {
		r.Set(&p, r.Default)
	}
	return p
}

// Clamped returns a copy of p with every numeric field inside its declared range.
// NaN values are replaced with the field default.
func (p Profile) Clamped() Profile {
	out := p
	for _, r := range Params {
		r.Set(&out, r.Clamp(r.Get(p)))
	}
	return out
}

// ProfileEdit is a partial profile change. Nil fields are left untouched.
type ProfileEdit struct {
	Name           *string
	PitchShift     *float64
	FormantShift   *float64
	Resonance      *float64
	Brightness     *float64
	TimbreShift    *float64
	GenderStrength *float64
	BreathNoise    *float64
}

// Apply merges the edit into p and returns the clamped result
func (e ProfileEdit) Apply(p Profile) Profile {
	out := p
	if e.Name != nil {
		out.Name = *e.Name
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&out.PitchShift, e.PitchShift)
	set(&out.FormantShift, e.FormantShift)
	set(&out.Resonance, e.Resonance)
	set(&out.Brightness, e.Brightness)
	set(&out.TimbreShift, e.TimbreShift)
	set(&out.GenderStrength, e.GenderStrength)
	set(&out.BreathNoise, e.BreathNoise)
	return out.Clamped()
}

// StatusSnapshot is the live backend status. It is produced entirely by the
// backend and never edited by the client.
type StatusSnapshot struct {
	LatencyMs    float64 `json:"latency_ms"`
	InputDevice  *string `json:"input_device"`
	OutputDevice *string `json:"output_device"`
	Enabled      bool    `json:"enabled"`
	CPUUsage     float64 `json:"cpu_usage"`
}

// Clone returns a deep copy of the snapshot
func (s StatusSnapshot) Clone() StatusSnapshot {
	out := s
	if s.InputDevice != nil {
		v := *s.InputDevice
		out.InputDevice = &v
	}
	if s.OutputDevice != nil {
		v := *s.OutputDevice
		out.OutputDevice = &v
	}
	return out
}

// ParamRange describes one numeric profile parameter
type ParamRange struct {
	Key     string  // JSON key, e.g. "pitch_shift"
	Label   string  // Display label
	Unit    string  // Display unit
	Min     float64 // Inclusive lower bound
	Max     float64 // Inclusive upper bound
	Default float64 // Value of a neutral profile
	Step    float64 // Increment used by interactive editors

	get func(Profile) float64
	set func(*Profile, float64)
}

// Get reads the parameter from p
func (r ParamRange) Get(p Profile) float64 { return r.get(p) }

// Set writes v into p without clamping
func (r ParamRange) Set(p *Profile, v float64) { r.set(p, v) }

// Clamp bounds v to [Min, Max]
func (r ParamRange) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Default
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Edit builds a ProfileEdit that sets only this parameter
func (r ParamRange) Edit(v float64) ProfileEdit {
	var e ProfileEdit
	switch r.Key {
	case "pitch_shift":
		e.PitchShift = &v
	case "formant_shift":
		e.FormantShift = &v
	case "resonance":
		e.Resonance = &v
	case "brightness":
		e.Brightness = &v
	case "timbre_shift":
		e.TimbreShift = &v
	case "gender_strength":
		e.GenderStrength = &v
	case "breath_noise":
		e.BreathNoise = &v
	}
	return e
}

// Params lists every numeric profile parameter in display order
var Params = []ParamRange{
	{Key: "pitch_shift", Label: "Pitch", Unit: "st", Min: -12, Max: 12, Default: 0, Step: 0.5,
		get: func(p Profile) float64 { return p.PitchShift }, set: func(p *Profile, v float64) { p.PitchShift = v }},
	{Key: "formant_shift", Label: "Formant", Unit: "x", Min: 0.6, Max: 1.4, Default: 1.0, Step: 0.05,
		get: func(p Profile) float64 { return p.FormantShift }, set: func(p *Profile, v float64) { p.FormantShift = v }},
	{Key: "resonance", Label: "Resonance", Unit: "%", Min: 0, Max: 100, Default: 0, Step: 5,
		get: func(p Profile) float64 { return p.Resonance }, set: func(p *Profile, v float64) { p.Resonance = v }},
	{Key: "brightness", Label: "Brightness", Unit: "dB", Min: -10, Max: 10, Default: 0, Step: 0.5,
		get: func(p Profile) float64 { return p.Brightness }, set: func(p *Profile, v float64) { p.Brightness = v }},
	{Key: "timbre_shift", Label: "Timbre", Unit: "x", Min: 0.5, Max: 2.0, Default: 1.0, Step: 0.05,
		get: func(p Profile) float64 { return p.TimbreShift }, set: func(p *Profile, v float64) { p.TimbreShift = v }},
	{Key: "gender_strength", Label: "Gender", Unit: "%", Min: 0, Max: 100, Default: 50, Step: 5,
		get: func(p Profile) float64 { return p.GenderStrength }, set: func(p *Profile, v float64) { p.GenderStrength = v }},
	{Key: "breath_noise", Label: "Breath", Unit: "%", Min: 0, Max: 100, Default: 0, Step: 5,
		get: func(p Profile) float64 { return p.BreathNoise }, set: func(p *Profile, v float64) { p.BreathNoise = v }},
}

// LookupParam finds a parameter by JSON key
func LookupParam(key string) (ParamRange, bool) {
	for _, r := range Params {
		if r.Key == key {
			return r, true
		}
	}
	return ParamRange{}, false
}

// IntPtr is a small helper for building configurations and edits
func IntPtr(v int) *int { return &v }

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
