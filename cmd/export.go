package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/textweave/textweave/internal/document"
	"github.com/textweave/textweave/internal/ioconv"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export [doc-id...]",
	Short: "Export stored documents as JSONL",
	Long:  "Writes the named documents, or every stored document when no ids are given, to a JSONL file with full annotation fidelity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		uids := args
		if len(uids) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			infos, err := st.ListDocuments(ctx, limit, 0)
			if err != nil {
				return eris.Wrap(err, "export: list documents")
			}
			for _, info := range infos {
				uids = append(uids, info.UID)
			}
		}
		if len(uids) == 0 {
			return eris.New("no documents to export")
		}

		docs := make([]*document.Document, 0, len(uids))
		for _, uid := range uids {
			doc, err := st.GetDocument(ctx, uid)
			if err != nil {
				return eris.Wrapf(err, "export %s", uid)
			}
			docs = append(docs, doc)
		}

		if err := ioconv.WriteFile(exportOutPath, docs); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("documents", len(docs)),
			zap.String("file", exportOutPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "path of the JSONL file to write (required)")
	exportCmd.Flags().Int("limit", 1000, "max number of documents when exporting without explicit ids")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
