package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		infos, err := st.ListDocuments(ctx, limit, offset)
		if err != nil {
			return eris.Wrap(err, "docs list")
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
			return nil
		}

		headers := []string{"ID", "PREVIEW", "ANNOTATIONS", "CREATED"}
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				truncateID(info.UID),
				truncate(info.Preview, 50),
				strconv.Itoa(info.AnnCount),
				info.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a stored document and its annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteDocument(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "docs delete %s", args[0])
		}
		zap.L().Info("document deleted", zap.String("doc", args[0]))
		return nil
	},
}

func init() {
	docsListCmd.Flags().Int("limit", 50, "max number of documents to display")
	docsListCmd.Flags().Int("offset", 0, "number of documents to skip")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
	rootCmd.AddCommand(docsCmd)
}
