package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/movewasm"
	"github.com/wippyai/movewasm/manifest"
)

var buildCmd = &cobra.Command{
	Use:   "build [package...]",
	Short: "Generate the codec module of one or more packages",
	Long: `Build reads movewasm.toml from each package directory (the current
directory by default), generates its codec module and writes it to the
configured output.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Bool("storage", true, "export storage save/load/read/delete for objects")
	buildCmd.Flags().Bool("echo", false, "export abi_echo_<fn> re-encoders")
	buildCmd.Flags().Bool("abi", false, "also write the JSON ABI next to the module")
	buildCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "packages built in parallel")
}

type pkg struct {
	manifest *manifest.Manifest
	defs     *manifest.Definitions
}

func loadPackage(path string) (*pkg, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	defs, err := m.Resolve()
	if err != nil {
		return nil, err
	}
	return &pkg{manifest: m, defs: defs}, nil
}

func packageArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func compileConfig(cmd *cobra.Command, m *manifest.Manifest) movewasm.Config {
	storage, _ := cmd.Flags().GetBool("storage")
	echo, _ := cmd.Flags().GetBool("echo")
	return movewasm.Config{Options: m.Options(), Storage: storage, Echo: echo}
}

func abiPath(output string) string {
	return strings.TrimSuffix(output, ".wasm") + ".abi.json"
}

func runBuild(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}
	jobs, _ := cmd.Flags().GetInt("jobs")
	writeABI, _ := cmd.Flags().GetBool("abi")

	var (
		mu      sync.Mutex
		reports = make([]string, len(args))
	)
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, min(jobs, len(args))))
	for i, path := range args {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := loadPackage(path)
			if err != nil {
				return err
			}
			art, err := movewasm.NewCompiler(p.defs, compileConfig(cmd, p.manifest)).Compile()
			if err != nil {
				return fmt.Errorf("%s: %w", p.manifest.Path, err)
			}
			out := p.manifest.Build.Output
			if err := os.WriteFile(out, art.Wasm, 0o644); err != nil {
				return err
			}
			if writeABI {
				data, err := movewasm.ExportABI(p.defs)
				if err != nil {
					return err
				}
				if err := os.WriteFile(abiPath(out), data, 0o644); err != nil {
					return err
				}
			}
			mu.Lock()
			reports[i] = fmt.Sprintf("%s (%d exports, %d functions, %d bytes)",
				out, len(art.Exports), art.Instantiations, len(art.Wasm))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range reports {
		okColor.Fprint(w, "built ")
		fmt.Fprintln(w, r)
	}
	return nil
}
