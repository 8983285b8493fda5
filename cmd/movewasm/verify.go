package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/movewasm"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [package]",
	Short: "Instantiate a built module on the simulated host and check its exports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPackage(packageArg(args))
		if err != nil {
			return err
		}
		art, err := movewasm.NewCompiler(p.defs, compileConfig(cmd, p.manifest)).Compile()
		if err != nil {
			return err
		}
		out := p.manifest.Build.Output
		bin, err := os.ReadFile(out)
		if err != nil {
			return err
		}
		if err := movewasm.Verify(cmd.Context(), bin, art.Exports); err != nil {
			return fmt.Errorf("%s: %w", out, err)
		}
		okColor.Fprint(cmd.OutOrStdout(), "ok ")
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d exports)\n", out, len(art.Exports))
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <function> <calldata>",
	Short: "Decode call data with the generated decoder and print its re-encoding",
	Long: `Decode compiles the package, runs abi_decode_<function> over the hex
call data (selector included) on the simulated host and prints the
re-encoded arguments one word per line. A canonical encoding prints back
unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("package")
		p, err := loadPackage(path)
		if err != nil {
			return err
		}
		calldata, err := decodeHex(args[1])
		if err != nil {
			return fmt.Errorf("calldata: %w", err)
		}
		var origin [20]byte
		if s, _ := cmd.Flags().GetString("origin"); s != "" {
			b, err := decodeHex(s)
			if err != nil || len(b) != len(origin) {
				return fmt.Errorf("--origin must be 20 hex bytes")
			}
			copy(origin[:], b)
		}

		cfg := compileConfig(cmd, p.manifest)
		cfg.Echo = true
		cfg.Options.ExportAllocator = true
		art, err := movewasm.NewCompiler(p.defs, cfg).Compile()
		if err != nil {
			return err
		}
		out, err := movewasm.Decode(cmd.Context(), art, args[0], calldata, origin)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for i := 0; i < len(out); i += 32 {
			end := min(i+32, len(out))
			fmt.Fprintf(w, "%s %s\n", noteColor.Sprintf("%04x", i), hex.EncodeToString(out[i:end]))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, decodeCmd} {
		c.Flags().Bool("storage", true, "export storage functions for objects")
		c.Flags().Bool("echo", false, "export abi_echo_<fn> re-encoders")
	}
	decodeCmd.Flags().StringP("package", "p", ".", "package directory or manifest")
	decodeCmd.Flags().String("origin", "", "transaction origin as 20 hex bytes")
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
