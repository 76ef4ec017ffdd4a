package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:         "label <old_label> <new_label>",
	Short:       "Rename a stored reference",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{dbAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		runLabel(cmd.Context(), args[0], args[1])
	},
}

var forgetCmd = &cobra.Command{
	Use:         "forget <label>",
	Short:       "Delete a stored reference",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{dbAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		runForget(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(forgetCmd)
}

func runLabel(ctx context.Context, oldLabel, newLabel string) {
	if err := DB.RenameReference(ctx, oldLabel, newLabel); err != nil {
		utils.Die("Failed to rename reference", err, nil)
	}
	fmt.Printf("✅ Reference '%s' relabeled as '%s'\n", oldLabel, newLabel)
}

func runForget(ctx context.Context, label string) {
	if err := DB.DeleteReference(ctx, label); err != nil {
		utils.Die("Failed to delete reference", err, nil)
	}
	fmt.Printf("🗑️  Reference '%s' deleted\n", label)
}
