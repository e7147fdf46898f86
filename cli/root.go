package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the askdocs command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "askdocs",
		Short: "Document question answering over your own files",
		Long: "askdocs indexes uploaded documents into a vector store and answers " +
			"questions about them with retrieval-augmented generation.",
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	root.AddCommand(
		ServeCmd(),
		KeysCmd(),
	)

	return root
}
