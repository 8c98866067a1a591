package host

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user-none/corehost/engine"
)

// statusLine renders an engine stats snapshot on one line.
type statusLine struct {
	styled bool
	label  lipgloss.Style
	value  lipgloss.Style
	warn   lipgloss.Style
	muted  lipgloss.Style
}

func newStatusLine(styled bool) statusLine {
	return statusLine{
		styled: styled,
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		value:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	}
}

type statusField struct {
	name  string
	value string
	bad   bool
}

// Render formats s. volume and muted describe the output gain.
func (l statusLine) Render(s engine.Stats, volume float64, muted bool) string {
	fields := []statusField{
		{"fill", fmt.Sprintf("%3.0f%%", s.FillRatio*100), s.FillRatio < engine.DefaultLowWaterMark},
		{"steps/s", fmt.Sprintf("%d", s.StepsPerSecond), false},
		{"skips", fmt.Sprintf("%d", s.SkipCount), s.SkipCount > 0},
		{"clips", fmt.Sprintf("%d", s.ClipCount), s.ClipCount > 0},
		{"reacquired", fmt.Sprintf("%d", s.Reacquires), false},
		{"dropped", fmt.Sprintf("%d", s.DroppedCallbacks), s.DroppedCallbacks > 0},
		{"vol", fmt.Sprintf("%.2f", volume), false},
	}

	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if !l.styled {
			parts = append(parts, f.name+" "+f.value)
			continue
		}
		v := l.value.Render(f.value)
		if f.bad {
			v = l.warn.Render(f.value)
		}
		parts = append(parts, l.label.Render(f.name)+" "+v)
	}
	if muted {
		if l.styled {
			parts = append(parts, l.muted.Render("muted"))
		} else {
			parts = append(parts, "muted")
		}
	}
	return strings.Join(parts, " | ")
}
