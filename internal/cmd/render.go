package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/mdedit/internal/renderer/richtree"
	"github.com/stateful/mdedit/pkg/document/rich"
)

func renderCmd() *cobra.Command {
	var dump bool

	cmd := cobra.Command{
		Use:   "render FILE",
		Short: "Render a Markdown file as the markup shown by the editor",
		Long:  `Render prints the HTML markup of a Markdown file. Use "-" to read from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			doc := richtree.New(rendererOptions(cfg)...).Render(data)

			out := rich.RenderHTML(doc)
			if dump {
				out = rich.Dump(doc)
			}
			_, err = cmd.OutOrStdout().Write([]byte(out))
			return errors.Wrap(err, "failed to write result")
		},
	}

	cmd.Flags().BoolVar(&dump, "tree", false, "Print the document tree instead of markup")

	return &cmd
}
