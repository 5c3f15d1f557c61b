package mockbackend

import "github.com/muurk/voxsync/internal/api"

// DefaultDevices is the device list served when Options.Devices is empty
var DefaultDevices = []api.AudioDevice{
	{Index: 0, Name: "Built-in Microphone", MaxInputChannels: 2, MaxOutputChannels: 0, DefaultSampleRate: 48000},
	{Index: 1, Name: "Built-in Output", MaxInputChannels: 0, MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{Index: 2, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	{Index: 3, Name: "Virtual Cable", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 48000},
}

// DefaultProfiles are installed at startup and refuse deletion
func DefaultProfiles() []api.Profile {
	neutral := api.DefaultProfile()

	male := api.DefaultProfile()
	male.Name = "DefaultMale"
	male.PitchShift = -4
	male.FormantShift = 1.1

	female := api.DefaultProfile()
	female.Name = "DefaultFemale"
	female.PitchShift = 4
	female.FormantShift = 0.9

	return []api.Profile{
		neutral,
		male,
		female,
		{Name: "Male to Female", PitchShift: 6, FormantShift: 0.85, Resonance: 30, Brightness: 2, TimbreShift: 0.9, GenderStrength: 70, BreathNoise: 15},
		{Name: "Female to Male", PitchShift: -6, FormantShift: 1.15, Resonance: 25, Brightness: -2, TimbreShift: 1.1, GenderStrength: 70, BreathNoise: 10},
		{Name: "Neutral Robot", PitchShift: 0, FormantShift: 1, Resonance: 0, Brightness: 0, TimbreShift: 1, GenderStrength: 0, BreathNoise: 0},
		{Name: "Deep Voice", PitchShift: -8, FormantShift: 1.2, Resonance: 40, Brightness: -3, TimbreShift: 1.15, GenderStrength: 80, BreathNoise: 5},
		{Name: "High Voice", PitchShift: 8, FormantShift: 0.8, Resonance: 35, Brightness: 3, TimbreShift: 0.85, GenderStrength: 80, BreathNoise: 20},
	}
}
