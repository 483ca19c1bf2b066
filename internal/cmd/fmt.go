package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/mdedit/internal/renderer/md"
	"github.com/stateful/mdedit/internal/renderer/richtree"
)

func fmtCmd() *cobra.Command {
	var write bool

	cmd := cobra.Command{
		Use:   "fmt FILE",
		Short: "Format a Markdown file the way the editor writes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileName := args[0]
			store, err := workspace()
			if err != nil {
				return err
			}
			if write && (fileName == "-" || !store.Exists(fileName)) {
				return errors.Errorf("--write requires a local file, got %q", fileName)
			}

			data, err := readInput(fileName, cmd.InOrStdin())
			if err != nil {
				return err
			}

			result := md.Render(richtree.New(rendererOptions(cfg)...).Render(data))

			if write {
				return store.Write(fileName, result)
			}
			_, err = cmd.OutOrStdout().Write(result)
			return errors.Wrap(err, "failed to write result")
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result to the file instead of stdout")

	return &cmd
}
