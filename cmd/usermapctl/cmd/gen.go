package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func GenCmd() *cobra.Command {
	var force bool

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Regenerate templ components when a .templ file changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			stale, err := staleTemplFiles(".")
			if err != nil {
				return err
			}
			if len(stale) == 0 && !force {
				fmt.Fprintln(out, "[templ] skipped")
				return nil
			}

			start := time.Now()
			templ := exec.CommandContext(cmd.Context(), "go", "tool", "templ", "generate")
			templ.Stdout = out
			templ.Stderr = cmd.ErrOrStderr()
			err = templ.Run()
			if err != nil {
				return fmt.Errorf("templ: %w", err)
			}

			fmt.Fprintf(out, "[templ] done (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	genCmd.Flags().BoolVar(&force, "force", false, "regenerate even when every output is up to date")
	return genCmd
}

// staleTemplFiles lists the .templ files under root whose _templ.go output is
// missing or older than the source. Directories starting with "." or "_" are
// skipped, as the go tool does.
func staleTemplFiles(root string) ([]string, error) {
	var stale []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".templ") {
			return nil
		}
		outFile := strings.TrimSuffix(path, ".templ") + "_templ.go"
		if !isUpToDate(outFile, []string{path}) {
			stale = append(stale, path)
		}
		return nil
	})
	return stale, err
}

func isUpToDate(output string, inputs []string) bool {
	outInfo, err := os.Stat(output)
	if err != nil {
		return false
	}
	outMod := outInfo.ModTime()

	for _, input := range inputs {
		inInfo, err := os.Stat(input)
		if err != nil {
			continue
		}
		if inInfo.ModTime().After(outMod) {
			return false
		}
	}
	return true
}
