package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Help styles
var (
	helpDescStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90E0EF")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Italic(true)
)

// KeyBinding documents one key of the live meter in the help output
type KeyBinding struct {
	Key  string
	Help string
}

type helpFlag struct {
	flags      string
	help       string
	defaultVal string
}

// StyledHelpPrinter renders kong help with lipgloss, flags grouped by their
// kong group and the meter key bindings listed last
func StyledHelpPrinter(description string, keys []KeyBinding) kong.HelpPrinter {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(TitleStyle.Render("Sonido Pulse"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(description))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(fmt.Sprintf("%s [flags]", ctx.Model.Name))
		sb.WriteString("\n")

		groups, order := collectFlags(ctx)
		for _, title := range order {
			writeFlagSection(&sb, title, groups[title])
		}

		if len(keys) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Keys:"))
			sb.WriteString("\n")
			for _, k := range keys {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Width(10).Render(k.Key))
				sb.WriteString(k.Help)
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		_, err := io.WriteString(ctx.Stdout, sb.String())
		return err
	}
}

func writeFlagSection(sb *strings.Builder, title string, flags []helpFlag) {
	width := 0
	for _, f := range flags {
		width = max(width, lipgloss.Width(f.flags))
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title + ":"))
	sb.WriteString("\n")
	for _, f := range flags {
		sb.WriteString("  ")
		sb.WriteString(helpFlagStyle.Width(width + 2).Render(f.flags))
		sb.WriteString(f.help)
		if f.defaultVal != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + f.defaultVal + ")"))
		}
		sb.WriteString("\n")
	}
}

// collectFlags groups the model's flags by kong group title, in first-seen
// order, with ungrouped flags under "Flags"
func collectFlags(ctx *kong.Context) (map[string][]helpFlag, []string) {
	groups := map[string][]helpFlag{
		"Flags": {{flags: "-h, --help", help: "Show context-sensitive help."}},
	}
	order := []string{"Flags"}

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		flagStr := fmt.Sprintf("--%s", f.Name)
		if f.Short != 0 {
			flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() {
			placeholder := f.PlaceHolder
			if placeholder == "" {
				placeholder = f.Name
			}
			flagStr += "=" + strings.ToUpper(placeholder)
		}

		title := "Flags"
		if f.Group != nil && f.Group.Title != "" {
			title = f.Group.Title
		}
		if _, ok := groups[title]; !ok {
			order = append(order, title)
		}
		groups[title] = append(groups[title], helpFlag{
			flags:      flagStr,
			help:       f.Help,
			defaultVal: f.Default,
		})
	}

	return groups, order
}
