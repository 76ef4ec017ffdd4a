package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var enrollOpts Options

var enrollCmd = &cobra.Command{
	Use:         "enroll <reference_dir>",
	Short:       "Encode a directory of labeled face images and store it in the database",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{dbAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		enrollOpts.ReferenceDir = args[0]
		return runEnroll(cmd.Context(), enrollOpts)
	},
}

func init() {
	addEngineFlags(enrollCmd.Flags(), &enrollOpts)
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(ctx context.Context, opts Options) error {
	source, err := filepath.Abs(opts.ReferenceDir)
	if err != nil {
		utils.ShowError("Invalid reference directory", err, nil)
		return err
	}

	eng, err := startEngine(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to start face engine", err, nil)
		return err
	}
	defer eng.Close()

	set, err := loadReferences(ctx, opts, eng)
	if err != nil {
		utils.ShowError("Failed to load references", err, nil)
		return err
	}

	n, err := DB.SaveReferences(ctx, set, source)
	if err != nil {
		utils.ShowError("Failed to save references", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "✅ Enrolled %d references from %s\n", n, source)
	return nil
}
