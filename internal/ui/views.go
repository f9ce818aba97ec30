package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/RyanBlaney/sonido-pulse/internal/cli"
	"github.com/RyanBlaney/sonido-pulse/phase"
)

// gainScale is the gain (in standard deviations) that fills a bar
const gainScale = 3.0

var (
	breakStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	dropStyle  = lipgloss.NewStyle().Bold(true).Foreground(cli.AccentColor)
	mutedStyle = lipgloss.NewStyle().Foreground(cli.MutedColor)
	barStyle   = lipgloss.NewStyle().Foreground(cli.PrimaryColor)
	hotStyle   = lipgloss.NewStyle().Foreground(cli.AccentColor)
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

func renderMeter(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	p := m.Current
	b.WriteString(renderState(m, p))
	b.WriteString("\n\n")

	barWidth := max(10, min(60, m.Width-30))
	for i, g := range p.Gains {
		b.WriteString(renderBand(bandLabel(m.edges, i), g, barWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderFooter(m))
	return b.String()
}

func renderHeader(m Model) string {
	title := cli.TitleStyle.UnsetMarginBottom().Render("Sonido Pulse")
	subtitle := mutedStyle.Italic(true).Render(m.source)
	return title + " " + subtitle
}

func renderState(m Model, p *phase.Phase) string {
	style := breakStyle
	if p.State.Kind == phase.Drop {
		style = dropStyle
	}

	line := fmt.Sprintf("%s  %s %+.2f  %s %s  %s %s",
		style.Render(strings.ToUpper(p.State.String())),
		cli.KeyStyle.Render("disc"), p.Discriminator,
		cli.KeyStyle.Render("for"), formatElapsed(time.Since(m.StateSince)),
		cli.KeyStyle.Render("centroid"), formatHz(p.Centroid),
	)
	if p.Silent {
		line += "  " + mutedStyle.Render("silent")
	}
	return line
}

// renderBand draws one gain bar. Negative gains leave the bar empty;
// gains beyond gainScale are drawn hot.
func renderBand(label string, gain float64, width int) string {
	frac := math.Max(0, math.Min(gain/gainScale, 1))
	filled := int(math.Round(frac * float64(width)))

	fill := barStyle
	if gain >= gainScale {
		fill = hotStyle
	}

	bar := fill.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s %s %+6.2f", cli.KeyStyle.Width(16).Render(label), bar, gain)
}

func bandLabel(edges []float64, band int) string {
	if band+1 >= len(edges) {
		return fmt.Sprintf("band %d", band)
	}
	return fmt.Sprintf("%s-%s", formatHz(edges[band]), formatHz(edges[band+1]))
}

func formatHz(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.1fk", hz/1000)
	}
	return fmt.Sprintf("%.0f", hz)
}

func renderFooter(m Model) string {
	p := m.Current
	status := fmt.Sprintf("cycle %d  transitions %d  up %s",
		p.Seq, m.Transitions, formatElapsed(time.Since(m.StartTime)))

	if m.pub.ResetPending() || (!m.ResetRequested.IsZero() && time.Since(m.ResetRequested) < time.Second) {
		status += "  " + hotStyle.Render("recalibrating")
	}
	if m.Err != nil {
		status += "  " + cli.ErrorStyle.Render(m.Err.Error())
	}

	return mutedStyle.Render(status) + "\n" + mutedStyle.Render("r recalibrate  q quit")
}

// formatElapsed formats a duration as MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
