package api

import (
	"fmt"
	"strings"
)

// Summary returns a one-line summary of the configuration
func (c Config) Summary() string {
	state := "disabled"
	if c.Enabled {
		state = "enabled"
	}
	return fmt.Sprintf("in=%s out=%s buffer=%d rate=%dHz %s",
		formatDevice(c.InputDevice), formatDevice(c.OutputDevice), c.BufferSize, c.SampleRate, state)
}

// FormatDetailed returns a multi-line description of the configuration.
// Device names are resolved from devices when available.
func (c Config) FormatDetailed(devices []AudioDevice) string {
	var b strings.Builder

	b.WriteString("=== Audio Configuration ===\n")
	b.WriteString(fmt.Sprintf("Input Device:  %s\n", describeDevice(c.InputDevice, devices)))
	b.WriteString(fmt.Sprintf("Output Device: %s\n", describeDevice(c.OutputDevice, devices)))
	b.WriteString(fmt.Sprintf("Buffer Size:   %d samples\n", c.BufferSize))
	b.WriteString(fmt.Sprintf("Sample Rate:   %d Hz\n", c.SampleRate))
	b.WriteString(fmt.Sprintf("Processing:    %s\n", onOff(c.Enabled)))

	return b.String()
}

// FormatDetailed returns a multi-line description of the profile
func (p Profile) FormatDetailed() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("=== Profile: %s ===\n", p.Name))
	for _, r := range Params {
		b.WriteString(fmt.Sprintf("%-11s %s\n", r.Label+":", r.Format(r.Get(p))))
	}

	return b.String()
}

// FormatCompact returns the profile on a single line
func (p Profile) FormatCompact() string {
	parts := make([]string, 0, len(Params))
	for _, r := range Params {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Key, trimFloat(r.Get(p))))
	}
	return fmt.Sprintf("%s [%s]", p.Name, strings.Join(parts, " "))
}

// Format renders a parameter value with its unit
func (r ParamRange) Format(v float64) string {
	return fmt.Sprintf("%s %s", trimFloat(v), r.Unit)
}

// FormatDetailed returns a multi-line description of the backend status
func (s StatusSnapshot) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== Backend Status ===\n")
	b.WriteString(fmt.Sprintf("Processing:    %s\n", onOff(s.Enabled)))
	b.WriteString(fmt.Sprintf("Latency:       %.1f ms\n", s.LatencyMs))
	b.WriteString(fmt.Sprintf("CPU Usage:     %.1f %%\n", s.CPUUsage))
	b.WriteString(fmt.Sprintf("Input Device:  %s\n", stringOr(s.InputDevice, "(none)")))
	b.WriteString(fmt.Sprintf("Output Device: %s\n", stringOr(s.OutputDevice, "(none)")))

	return b.String()
}

// FormatDeviceTable renders the device list as aligned columns
func FormatDeviceTable(devices []AudioDevice) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-5s %-4s %-4s %s\n", "INDEX", "IN", "OUT", "NAME"))
	for _, d := range devices {
		b.WriteString(fmt.Sprintf("%-5d %-4d %-4d %s\n", d.Index, d.MaxInputChannels, d.MaxOutputChannels, d.Name))
	}

	return b.String()
}

// DeviceName resolves a device index to its name
func DeviceName(index *int, devices []AudioDevice) (string, bool) {
	if index == nil {
		return "", false
	}
	for _, d := range devices {
		if d.Index == *index {
			return d.Name, true
		}
	}
	return "", false
}

func describeDevice(index *int, devices []AudioDevice) string {
	if index == nil {
		return "(not selected)"
	}
	if name, ok := DeviceName(index, devices); ok {
		return fmt.Sprintf("%s (#%d)", name, *index)
	}
	return fmt.Sprintf("#%d", *index)
}

func formatDevice(index *int) string {
	if index == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *index)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
