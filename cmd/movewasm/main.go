package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/movewasm"
	"github.com/wippyai/movewasm/cache"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/vmhost"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen)
	noteColor  = color.New(color.FgYellow)
)

var rootCmd = &cobra.Command{
	Use:           "movewasm",
	Short:         "ABI codec and storage generator for Move packages on WebAssembly",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, _ := cmd.Flags().GetString("color")
		switch mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		case "auto":
			color.NoColor = !isTerminal(os.Stdout)
		default:
			return fmt.Errorf("--color must be auto, on or off, got %q", mode)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			return nil
		}
		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		movewasm.SetLogger(log)
		cache.SetLogger(log.Named("cache"))
		codegen.SetLogger(log.Named("codegen"))
		vmhost.SetLogger(log.Named("vmhost"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd, selectorsCmd, abiCmd, layoutCmd, verifyCmd, decodeCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log code generation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
