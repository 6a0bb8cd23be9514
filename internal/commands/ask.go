package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
)

func newAskCmd(st *cli) *cobra.Command {
	var (
		fileName  string
		sessionID string
		topK      int
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := st.container.Chat.Ask(cmd.Context(), services.AskInput{
				Question:  strings.Join(args, " "),
				SessionID: sessionID,
				FileName:  fileName,
				TopK:      topK,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "session: %s\n", res.SessionID)
			if res.Degraded {
				fmt.Fprintln(out, "note: fallback embeddings, ranking is not semantic")
			}
			for i, s := range res.Sources {
				fmt.Fprintf(out, "[%d] %s#%d score=%.4f\n", i+1, s.FileName, s.Index, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fileName, "file", "", "only search this document")
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve (default from config)")
	return cmd
}
