package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/mdedit/internal/client"
	"github.com/stateful/mdedit/internal/log"
	"github.com/stateful/mdedit/internal/remote"
	"github.com/stateful/mdedit/internal/remotesync"
	"github.com/stateful/mdedit/internal/version"
)

type remoteEnv struct {
	client   *remote.Client
	manager  *remotesync.Manager
	mappings remotesync.MappingStore
}

func (e *remoteEnv) Close() error {
	return e.mappings.Close()
}

func newRemoteEnv(cmd *cobra.Command) (*remoteEnv, error) {
	logger := log.Get().Named("remote")

	opts := []client.Option{
		client.WithUserAgent(version.Short()),
		client.WithLogger(logger),
	}
	if fHTTPDump {
		opts = append(opts, client.WithHTTPDump(cmd.ErrOrStderr(), isTerminal()))
	}

	rc, err := remote.New(
		os.Getenv(cfg.Remote.TokenEnv),
		remote.WithBaseURL(cfg.Remote.BaseURL),
		remote.WithHTTPClient(client.NewHTTPClient(nil, opts...)),
		remote.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if !rc.HasToken() {
		return nil, errors.Wrapf(remote.ErrNoToken, "set %s", cfg.Remote.TokenEnv)
	}

	convert, err := remotesync.ConverterByName(cfg.Remote.Converter)
	if err != nil {
		return nil, err
	}

	files, err := workspace()
	if err != nil {
		return nil, err
	}

	var mappings remotesync.MappingStore
	switch cfg.Remote.Mappings.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Remote.Mappings.Path), 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
		mappings, err = remotesync.NewSQLiteStore(cfg.Remote.Mappings.Path)
		if err != nil {
			return nil, err
		}
	default:
		mappings = remotesync.NewYAMLStore(files, cfg.Remote.Mappings.Path)
	}

	manager := remotesync.NewManager(
		rc,
		files,
		mappings,
		remotesync.WithConverter(convert),
		remotesync.WithFolder(cfg.Remote.Folder),
		remotesync.WithLogger(logger),
	)
	return &remoteEnv{client: rc, manager: manager, mappings: mappings}, nil
}

// runRemote runs fn with a remote environment closed afterwards.
func runRemote(cmd *cobra.Command, fn func(*remoteEnv) error) (err error) {
	env, err := newRemoteEnv(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(env)
}

func remoteCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "remote",
		Short: "Sync Markdown files with documents of a remote document service",
	}

	cmd.PersistentFlags().BoolVar(&fHTTPDump, "http-dump", false, "Dump HTTP requests and responses to stderr")

	cmd.AddCommand(remotePullCmd())
	cmd.AddCommand(remotePushCmd())
	cmd.AddCommand(remoteCreateCmd())
	cmd.AddCommand(remoteDeleteCmd())
	cmd.AddCommand(remoteListCmd())

	return &cmd
}

func remotePullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull ID",
		Short: "Download a remote document as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, func(env *remoteEnv) error {
				m, err := env.manager.Pull(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("pulled %q into %s\n", m.Title, m.LocalPath)
				return nil
			})
		},
	}
}

func remotePushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push FILE",
		Short: "Replace the linked remote document with a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, func(env *remoteEnv) error {
				m, err := env.manager.Push(cmd.Context(), args[0])
				if errors.Is(err, remotesync.ErrNotLinked) {
					return errors.Errorf("%s is not linked to a remote document, use \"mdedit remote create\"", args[0])
				}
				if err != nil {
					return err
				}
				cmd.Printf("pushed %s to %q\n", m.LocalPath, m.Title)
				return nil
			})
		},
	}
}

func remoteCreateCmd() *cobra.Command {
	var fileName string

	cmd := cobra.Command{
		Use:   "create TITLE",
		Short: "Create a remote document",
		Long:  `Create a remote document from --file, or from a starter document written into the local folder.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, func(env *remoteEnv) error {
				m, err := env.manager.Create(cmd.Context(), args[0], fileName)
				if err != nil {
					return err
				}
				cmd.Printf("created %q (%s) linked to %s\n", m.Title, m.ID, m.LocalPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&fileName, "file", "f", "", "Local Markdown file to upload")

	return &cmd
}

func remoteDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a remote document and unlink its local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, func(env *remoteEnv) error {
				if err := env.manager.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func remoteListCmd() *cobra.Command {
	var recent bool

	cmd := cobra.Command{
		Use:   "list",
		Short: "List linked files, or recent remote documents with --recent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, func(env *remoteEnv) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

				if recent {
					docs, err := env.client.RecentDocuments(cmd.Context())
					if err != nil {
						return err
					}
					ids := make([]string, 0, len(docs))
					for id := range docs {
						ids = append(ids, id)
					}
					sort.Strings(ids)

					_, _ = fmt.Fprintln(w, "ID\tTITLE")
					for _, id := range ids {
						_, _ = fmt.Fprintf(w, "%s\t%s\n", id, docs[id].Thread.Title)
					}
					return errors.WithStack(w.Flush())
				}

				mappings, err := env.manager.List()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(w, "ID\tTITLE\tFILE")
				for _, m := range mappings {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Title, m.LocalPath)
				}
				return errors.WithStack(w.Flush())
			})
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", false, "List recently used remote documents")

	return &cmd
}
