package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammadjaf013/findlanqbot/internal/extract"
)

func newIngestCmd(st *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest documents; directories contribute their supported files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				res, err := st.container.Ingest.IngestDocument(cmd.Context(), filepath.Base(p), data)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: failed: %v\n", p, err)
					continue
				}
				line := fmt.Sprintf("%s: %s (%d chunks)", res.FileName, res.Status, res.Chunks)
				if res.Reason != "" {
					line += ", " + res.Reason
				}
				if res.Degraded {
					line += ", fallback embeddings"
				}
				fmt.Fprintln(out, line)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(paths))
			}
			return nil
		},
	}
}

// expandPaths keeps files as given and replaces a directory by its
// supported files, non-recursively.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(extract.Supported, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			out = append(out, filepath.Join(a, e.Name()))
		}
	}
	return out, nil
}
