package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stateful/mdedit/internal/editor"
	"github.com/stateful/mdedit/internal/filestore"
	"github.com/stateful/mdedit/internal/log"
	"github.com/stateful/mdedit/internal/protocol"
	"github.com/stateful/mdedit/internal/session"
	"github.com/stateful/mdedit/internal/ulid"
)

// shutdownTimeout bounds the final save when the server stops.
const shutdownTimeout = 5 * time.Second

// recoverLatest selects the newest backup in backup.dir.
const recoverLatest = "latest"

func serveCmd() *cobra.Command {
	const defaultAddr = "unix:///tmp/mdedit.sock"

	var (
		addr        string
		recoverFrom string
		saveOnExit  bool
	)

	cmd := cobra.Command{
		Use:   "serve FILE",
		Short: "Open a document and serve it to editor views",
		Long: `Serve opens FILE and accepts views on a socket. Every connection speaks
the view protocol: one JSON message per line.

While served the document is backed up periodically. Start with --recover
to continue from a backup after a crash; --recover latest picks the newest
one in backup.dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lis, err := listen(addr)
			if err != nil {
				return err
			}

			cmd.Printf("serving %s on %s\n", args[0], lis.Addr())

			return serve(ctx, lis, args[0], serveOptions{
				recoverFrom: recoverFrom,
				saveOnExit:  saveOnExit,
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "address", "a", defaultAddr, "Address to create unix (unix:///path/to/socket) or IP socket (localhost:7890)")
	cmd.Flags().StringVar(&recoverFrom, "recover", "", "Backup to load the document content from, or \"latest\"")
	cmd.Flags().BoolVar(&saveOnExit, "save-on-exit", true, "Save pending changes when the server stops")

	return &cmd
}

func listen(addr string) (net.Listener, error) {
	if strings.HasPrefix(addr, "unix://") {
		addr := strings.TrimPrefix(addr, "unix://")
		_ = os.Remove(addr)
		lis, err := net.Listen("unix", addr)
		return lis, errors.WithStack(err)
	}
	lis, err := net.Listen("tcp", addr)
	return lis, errors.WithStack(err)
}

type serveOptions struct {
	recoverFrom string
	saveOnExit  bool
}

// serve runs until ctx is done. Pending changes are saved through the
// attached views before they are disconnected.
func serve(ctx context.Context, lis net.Listener, uri string, opts serveOptions) error {
	logger := log.Get().With(zap.String("uri", uri))

	store, err := workspace()
	if err != nil {
		return err
	}

	provider := editor.NewProvider(
		store,
		editor.WithLogger(logger),
		editor.WithEditListener(func(e editor.DocumentEdit) {
			logger.Debug("document edited", zap.String("label", e.Label), zap.String("id", e.Record.ID))
		}),
	)

	if opts.recoverFrom == recoverLatest {
		opts.recoverFrom, err = latestBackup(store, cfg.Backup.Dir)
		if err != nil {
			_ = lis.Close()
			return err
		}
		logger.Info("recovering from backup", zap.String("backup", opts.recoverFrom))
	}

	var sessionOpts []session.Option
	if opts.recoverFrom != "" {
		sessionOpts = append(sessionOpts, session.WithBackup(opts.recoverFrom))
	}
	doc, err := provider.Open(ctx, uri, sessionOpts...)
	if err != nil {
		_ = lis.Close()
		return err
	}

	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()

	g, serveCtx := errgroup.WithContext(serveCtx)

	g.Go(func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				if serveCtx.Err() != nil {
					return nil
				}
				return errors.Wrap(err, "failed to accept")
			}
			g.Go(func() error {
				err := provider.Attach(serveCtx, uri, protocol.NewStream(conn, logger))
				if err != nil && serveCtx.Err() == nil {
					logger.Info("view disconnected", zap.Error(err))
				}
				return nil
			})
		}
	})

	var lastBackup *session.Backup
	if cfg.Backup.Interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Backup.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-serveCtx.Done():
					return nil
				case <-ticker.C:
				}
				if !doc.IsDirty() {
					continue
				}
				b, err := doc.Backup(serveCtx, path.Join(cfg.Backup.Dir, ulid.New()+".md"))
				if err != nil {
					logger.Warn("failed to back up document", zap.Error(err))
					continue
				}
				if b == nil {
					continue
				}
				if lastBackup != nil {
					lastBackup.Delete()
				}
				lastBackup = b
				logger.Debug("backed up document", zap.String("backup", b.URI))
			}
		})
	}

	clean := true
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-serveCtx.Done():
		}
		if opts.saveOnExit && doc.IsDirty() {
			saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := doc.Save(saveCtx); err != nil {
				logger.Warn("failed to save on exit", zap.Error(err))
			}
			cancel()
		}
		clean = !doc.IsDirty()

		cancelServe()
		return multierr.Combine(lis.Close(), provider.Close())
	})

	err = g.Wait()
	if clean {
		if lastBackup != nil {
			lastBackup.Delete()
		}
		if opts.recoverFrom != "" {
			if err := store.Delete(opts.recoverFrom); err != nil {
				logger.Debug("failed to delete recovered backup", zap.Error(err))
			}
		}
	}
	return err
}

// latestBackup returns the backup in dir with the newest time encoded in
// its name. Files not named by an id are skipped.
func latestBackup(store *filestore.Store, dir string) (string, error) {
	names, err := store.List(dir, ".md")
	if err != nil {
		return "", err
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, name := range names {
		id := strings.TrimSuffix(path.Base(name), ".md")
		if !ulid.Valid(id) {
			continue
		}
		ts, _ := ulid.Time(id)
		if latest == "" || ts.After(latestTime) || (ts.Equal(latestTime) && name > latest) {
			latest, latestTime = name, ts
		}
	}
	if latest == "" {
		return "", errors.Errorf("no backups in %s", dir)
	}
	return latest, nil
}
