package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facewatch/internal/store"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List all references stored in the database",
	Annotations: map[string]string{dbAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		runList(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) {
	refs, err := DB.ListReferences(ctx)
	if err != nil {
		utils.Die("Failed to list references", err, nil)
	}
	printReferences(os.Stdout, refs)
}

func printReferences(out io.Writer, refs []store.Reference) {
	if len(refs) == 0 {
		fmt.Fprintln(out, "No references found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSOURCE\tENROLLED")
	fmt.Fprintln(w, "-----\t------\t--------")
	for _, r := range refs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Label, r.Source, r.EnrolledAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
