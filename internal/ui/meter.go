package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Meter renders a labelled horizontal gauge, e.g. latency or CPU load
type Meter struct {
	Label string
	Unit  string
	Max   float64
	bar   progress.Model
}

// NewMeter creates a meter whose bar is width cells wide
func NewMeter(label, unit string, max float64, width int) *Meter {
	return &Meter{
		Label: label,
		Unit:  unit,
		Max:   max,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		),
	}
}

// Fraction returns value as a share of Max, clamped to [0, 1]
func (m *Meter) Fraction(value float64) float64 {
	if m.Max <= 0 || value <= 0 {
		return 0
	}
	if value >= m.Max {
		return 1
	}
	return value / m.Max
}

// Render draws the meter for value
func (m *Meter) Render(value float64) string {
	label := LabelStyle.Width(10).Render(m.Label)
	reading := ValueStyle.Render(fmt.Sprintf("%6.2f %s", value, m.Unit))
	return lipgloss.JoinHorizontal(lipgloss.Center, label, m.bar.ViewAs(m.Fraction(value)), "  ", reading)
}
