// Package cli holds the terminal styling shared by the command and its help
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#00B4D8") // Pulse cyan
	AccentColor  = lipgloss.Color("#FF5E5B") // Drop red
	MutedColor   = lipgloss.Color("#888888")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Sonido Pulse"))
	PrintKeyValue(os.Stdout, "Version:", version)
	fmt.Println()
}

// PrintKeyValue prints one aligned "key value" line
func PrintKeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Width(16).Render(key), ValueStyle.Render(fmt.Sprint(value)))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}
