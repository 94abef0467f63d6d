package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/textweave/textweave/internal/ioconv"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import JSONL documents into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		docs, err := ioconv.ReadFile(importFilePath)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return eris.Errorf("no documents found in %s", importFilePath)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.ImportDocuments(ctx, docs); err != nil {
			return eris.Wrap(err, "import documents")
		}

		zap.L().Info("import complete",
			zap.Int("documents", len(docs)),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to JSONL file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
