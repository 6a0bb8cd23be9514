package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newFilesCmd(st *cli) *cobra.Command {
	files := &cobra.Command{
		Use:   "files",
		Short: "Inspect or remove ingested documents",
	}

	files.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ingested documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := st.container.Ingest.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tCHUNKS\tUPLOADED\tHASH")
			for _, r := range recs {
				hash := r.FileHash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.FileName, r.ChunksCount, r.UploadedAt.Format(time.RFC3339), hash)
			}
			return tw.Flush()
		},
	})

	files.AddCommand(&cobra.Command{
		Use:   "delete <file_name>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.container.Ingest.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return files
}
