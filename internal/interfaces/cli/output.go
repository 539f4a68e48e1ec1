package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutput(output string) error {
	switch output {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", output)
	}
}

// renderPlugins writes plugins in the requested format
func renderPlugins(w io.Writer, installed []plugindomain.InstalledPlugin, output string) error {
	if installed == nil {
		installed = []plugindomain.InstalledPlugin{}
	}

	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(installed)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(installed); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, renderPluginTable(lipgloss.NewRenderer(w), installed))
		return err
	}
}

// renderPluginTable renders Name/Type/Version/Priority/Status columns.
// Styling degrades to plain text when w is not a terminal.
func renderPluginTable(r *lipgloss.Renderer, installed []plugindomain.InstalledPlugin) string {
	headers := []string{"NAME", "TYPE", "VERSION", "PRIORITY", "STATUS"}
	rows := make([][]string, 0, len(installed))
	for _, p := range installed {
		rows = append(rows, []string{
			filepath.Base(p.Path),
			p.Type,
			p.Version,
			strconv.Itoa(p.Priority),
			statusLabel(p),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	enabledStyle := r.NewStyle().Foreground(lipgloss.Color("46"))
	disabledStyle := r.NewStyle().Foreground(lipgloss.Color("240"))

	lines := []string{headerStyle.Render(formatRow(headers, widths))}
	for i, row := range rows {
		style := enabledStyle
		if !installed[i].Enabled {
			style = disabledStyle
		}
		lines = append(lines, style.Render(formatRow(row, widths)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatRow(cells []string, widths []int) string {
	line := ""
	for i, cell := range cells {
		if i > 0 {
			line += " │ "
		}
		if i == len(cells)-1 {
			line += cell
			continue
		}
		line += fmt.Sprintf("%-*s", widths[i], cell)
	}
	return line
}

func statusLabel(p plugindomain.InstalledPlugin) string {
	status := "disabled"
	if p.Enabled {
		status = "enabled"
	}
	if !p.Registered {
		status += " (unregistered)"
	}
	return status
}
