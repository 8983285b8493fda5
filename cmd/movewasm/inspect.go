package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/movewasm"
	"github.com/wippyai/movewasm/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	selectorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Width(9)
)

func title(s string) string {
	if !isTerminal(os.Stdout) {
		return s
	}
	return titleStyle.Render(s)
}

var selectorsCmd = &cobra.Command{
	Use:   "selectors [package]",
	Short: "Print function and error selectors and event topics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPackage(packageArg(args))
		if err != nil {
			return err
		}
		entries, err := movewasm.BuildABI(p.defs)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, title(p.defs.Module.String()))
		for _, e := range entries {
			fmt.Fprintf(w, "%s %s %s\n", kindStyle.Render(e.Type), selectorStyle.Render(e.Selector), e.Signature)
		}
		return nil
	},
}

var abiCmd = &cobra.Command{
	Use:   "abi [package]",
	Short: "Print the JSON ABI of a package",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPackage(packageArg(args))
		if err != nil {
			return err
		}
		data, err := movewasm.ExportABI(p.defs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout [package]",
	Short: "Print the storage layout of every concrete object",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPackage(packageArg(args))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, def := range p.defs.Objects() {
			if def.TypeParams > 0 {
				noteColor.Fprintf(w, "%s is generic, layout depends on its instantiation\n", def.Name)
				continue
			}
			words, err := storage.Layout(p.defs.Registry, def.Type())
			if err != nil {
				noteColor.Fprintf(w, "%s: %v\n", def.Name, err)
				continue
			}
			fmt.Fprintln(w, title(def.Name))
			for _, line := range storage.Describe(words) {
				fmt.Fprintln(w, "  "+line)
			}
		}
		return nil
	},
}
