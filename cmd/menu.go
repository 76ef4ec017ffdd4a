package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var menuOpts Options

var menuCmd = &cobra.Command{
	Use:   "menu [reference_dir]",
	Short: "Interactive console menu around the live recognizer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			menuOpts.ReferenceDir = args[0]
		}
		ctx := cmd.Context()
		return runMenu(ctx, os.Stdin, os.Stdout, func() error {
			return runWatch(ctx, menuOpts)
		})
	},
}

func init() {
	addWatchFlags(menuCmd.Flags(), &menuOpts)
	rootCmd.AddCommand(menuCmd)
}

type menuItem struct {
	key   string
	label string
}

var menuItems = []menuItem{
	{"1", "Run Face Recognition"},
	{"2", "Exit"},
}

// runMenu shows the menu until Exit, end of input or cancellation. A failed
// run is reported by run itself and returns to the menu.
func runMenu(ctx context.Context, in io.Reader, out io.Writer, run func() error) error {
	r := bufio.NewReader(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(out, "\n== Face Recognition Menu ==")
		for _, it := range menuItems {
			fmt.Fprintf(out, "%s. %s\n", it.key, it.label)
		}
		fmt.Fprintf(out, "Select an option [1/2]: ")

		line, err := r.ReadString('\n')
		choice := strings.TrimSpace(line)
		if err != nil && choice == "" {
			fmt.Fprintln(out)
			return nil
		}

		switch choice {
		case "1":
			if err := run(); err != nil {
				logger.Warn("face recognition run failed", "error", err)
			}
		case "2":
			return nil
		default:
			fmt.Fprintf(out, "⚠️  Invalid option %q\n", choice)
		}
	}
}
