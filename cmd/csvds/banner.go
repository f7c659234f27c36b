package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codelibs/fess-ds-csv/internal/lifecycle"
	"github.com/codelibs/fess-ds-csv/internal/model"
)

func printStartupBanner(cfg appConfig, mode string) {
	fmt.Println(renderBanner(cfg, mode))
}

func renderBanner(cfg appConfig, mode string) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	row := func(mark, label, value string) string {
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, cyan.Bold(true).Render("    csvds")+"  "+dim.Render("v"+version+" · "+mode))
	lines = append(lines, "")
	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	// Inputs
	params := cfg.Job.Params
	lines = append(lines, bold.Render("    Inputs"), "")
	if v := params.Get(model.ParamFiles); v != "" {
		lines = append(lines, row(check, "Files", cyan.Render(v)))
	} else if v := params.Get(model.ParamDirectories); v != "" {
		lines = append(lines, row(check, "Directories", cyan.Render(v)))
	} else {
		lines = append(lines, row(dot, "Inputs", yellow.Render("none configured")))
	}
	if mode == "watch" {
		opts := lifecycle.OptionsFromParams(params)
		lines = append(lines, row(check, "Workers", dim.Render(fmt.Sprintf("%d", opts.Threads))))
		lines = append(lines, row(check, "Settle", dim.Render(opts.Margin.String())))
	}
	if cfg.Job.ScriptsFile != "" {
		lines = append(lines, row(check, "Scripts", dim.Render(shortenPath(cfg.Job.ScriptsFile))))
	} else {
		lines = append(lines, row(dot, "Scripts", dim.Render("none")))
	}
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, row(check, "Database", dim.Render(shortenPath(cfg.DBPath))))
	if cfg.JournalEnabled {
		lines = append(lines, row(check, "Journal", dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, row(dot, "Journal", dim.Render("disabled")))
	}
	lines = append(lines, "")

	if mode == "watch" {
		lines = append(lines, bold.Render("    Gateway"), "")
		if cfg.APIEnabled {
			lines = append(lines, row(check, "HTTP API", cyan.Render(cfg.APIAddr)))
		} else {
			lines = append(lines, row(dot, "HTTP API", dim.Render("disabled")))
		}
		lines = append(lines, "")
	}

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(dot, "Config File", dim.Render("default (no file)")))
	}
	lines = append(lines, "", separator, "")
	if mode == "watch" {
		lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")
	}
	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
