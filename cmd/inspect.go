package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/span"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <doc-id>",
	Short: "Show a stored document and its annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := st.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "inspect %s", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Document %s\n%s\n\n", doc.UID, truncate(doc.Text, 200))

		headers := []string{"ID", "KIND", "LABEL", "TEXT", "SPANS", "ATTRIBUTES"}
		var rows [][]string
		raw := doc.RawSegment()
		for _, ann := range doc.Anns.All() {
			if ann.Common().UID == raw.UID {
				continue
			}
			rows = append(rows, annotationRow(ann))
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No annotations.")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// annotationRow flattens one annotation into table cells.
func annotationRow(ann annot.Annotation) []string {
	base := ann.Common()
	var kind, text, spans string
	switch a := ann.(type) {
	case *annot.Entity:
		kind = annot.KindEntity
		text = a.Text
		spans = formatBounds(a.NormalizedSpans())
	case *annot.Segment:
		kind = annot.KindSegment
		text = a.Text
		spans = formatBounds(a.NormalizedSpans())
	case *annot.Relation:
		kind = annot.KindRelation
		text = truncateID(a.SourceID) + " -> " + truncateID(a.TargetID)
	}
	return []string{
		truncateID(base.UID),
		kind,
		base.Label,
		truncate(text, 40),
		spans,
		formatAttrs(base.Attrs),
	}
}

// formatBounds renders normalized spans as start..end pairs.
func formatBounds(bounds []span.Bound) string {
	parts := make([]string, 0, len(bounds))
	for _, b := range bounds {
		parts = append(parts, fmt.Sprintf("%d..%d", b.Start, b.End))
	}
	return strings.Join(parts, ", ")
}

// formatAttrs renders attributes as label=value pairs.
func formatAttrs(attrs *annot.Attrs) string {
	var parts []string
	for _, attr := range attrs.All() {
		switch v := attr.Value.(type) {
		case annot.BoolValue:
			parts = append(parts, fmt.Sprintf("%s=%t", attr.Label, bool(v)))
		case annot.StringValue:
			parts = append(parts, fmt.Sprintf("%s=%s", attr.Label, string(v)))
		case annot.FloatValue:
			parts = append(parts, fmt.Sprintf("%s=%g", attr.Label, float64(v)))
		case annot.NormValue:
			parts = append(parts, fmt.Sprintf("%s=%s:%s", attr.Label, v.KB, v.ID))
		default:
			parts = append(parts, attr.Label)
		}
	}
	return strings.Join(parts, ", ")
}
