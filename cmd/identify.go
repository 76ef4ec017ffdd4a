package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facewatch/internal/camera"
	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/spf13/cobra"
)

var identifyOpts Options

var identifyCmd = &cobra.Command{
	Use:   "identify <image_path>",
	Short: "Label every face in a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIdentify(cmd.Context(), args[0], identifyOpts)
	},
}

func init() {
	f := identifyCmd.Flags()
	f.StringVarP(&identifyOpts.ReferenceDir, "refs", "r", defaultReferenceDir, "Directory of labeled reference images")
	f.BoolVar(&identifyOpts.FromDB, "from-db", false, "Match against references stored in PostgreSQL")
	f.StringVarP(&identifyOpts.Policy, "policy", "p", matcher.PolicyNearest, "Matching policy for --refs")
	f.Float64VarP(&identifyOpts.MatchThreshold, "threshold", "t", matcher.DefaultThreshold, "Face matching threshold")
	addEngineFlags(f, &identifyOpts)
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(ctx context.Context, imagePath string, opts Options) error {
	if err := validateIdentifyFlags(&opts); err != nil {
		utils.ShowError("Invalid options", err, nil)
		return err
	}
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	img, err := camera.ReadImage(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}
	defer img.Close()

	eng, err := startEngine(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to start face engine", err, nil)
		return err
	}
	defer eng.Close()

	obs, err := eng.Detect(ctx, img)
	if err != nil {
		utils.ShowError("Face detection failed", err, nil)
		return err
	}
	if len(obs) == 0 {
		fmt.Println("No faces found in image.")
		return nil
	}

	var matches []vision.Match
	if opts.FromDB {
		// pgvector does the nearest neighbour search
		for _, o := range obs {
			label, dist, err := DB.FindClosest(ctx, o.Embedding, opts.MatchThreshold)
			if err != nil {
				utils.ShowError("Database search failed", err, nil)
				return err
			}
			matches = append(matches, vision.Match{Observation: o, Label: label, Distance: dist})
		}
	} else {
		refs, err := loadReferences(ctx, opts, eng)
		if err != nil {
			utils.ShowError("Failed to load references", err, nil)
			return err
		}
		policy, err := matcher.New(opts.Policy, opts.MatchThreshold, refs)
		if err != nil {
			utils.ShowError("Failed to build matcher", err, nil)
			return err
		}
		matches = matcher.MatchAll(policy, obs, refs)
	}

	printMatches(os.Stdout, matches)
	return nil
}

func validateIdentifyFlags(opts *Options) error {
	if err := validateMatching(opts); err != nil {
		return err
	}
	return validateEngine(opts)
}

func printMatches(out io.Writer, matches []vision.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FACE\tLABEL\tDISTANCE\tBOX (T,R,B,L)")
	fmt.Fprintln(w, "----\t-----\t--------\t-------------")
	for i, m := range matches {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d,%d,%d,%d\n", i+1, m.Label, fmtDistance(m.Distance),
			m.Box.Top, m.Box.Right, m.Box.Bottom, m.Box.Left)
	}
	w.Flush()
}

func fmtDistance(d float64) string {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return "-"
	}
	return fmt.Sprintf("%.3f", d)
}
