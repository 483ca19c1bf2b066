package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stateful/mdedit/internal/log"
	"github.com/stateful/mdedit/internal/protocol"
	"github.com/stateful/mdedit/internal/view"
)

const (
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

func attachCmd() *cobra.Command {
	var (
		addr   string
		format string
	)

	cmd := cobra.Command{
		Use:   "attach",
		Short: "Attach a headless view to a served document",
		Long: `Attach connects a view to a document served by "mdedit serve".

The content is printed whenever the server pushes it. Every line read from
stdin is typed into the view; input is synced after the editor.debounce
quiet period and when stdin is closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatMarkdown && format != formatHTML {
				return errors.Errorf("unknown format %q", format)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := dial(addr)
			if err != nil {
				return err
			}
			return attach(ctx, conn, cmd.InOrStdin(), cmd.OutOrStdout(), format)
		},
	}

	cmd.Flags().StringVarP(&addr, "address", "a", "unix:///tmp/mdedit.sock", "Address of the server, unix (unix:///path/to/socket) or IP socket (localhost:7890)")
	cmd.Flags().StringVar(&format, "format", formatMarkdown, "Format of printed content: markdown or html")

	return &cmd
}

func dial(addr string) (net.Conn, error) {
	if strings.HasPrefix(addr, "unix://") {
		conn, err := net.Dial("unix", strings.TrimPrefix(addr, "unix://"))
		return conn, errors.WithStack(err)
	}
	conn, err := net.Dial("tcp", addr)
	return conn, errors.WithStack(err)
}

// attach runs a view over conn until the server disconnects, ctx is done
// or in is exhausted.
func attach(ctx context.Context, conn net.Conn, in io.Reader, out io.Writer, format string) error {
	logger := log.Get().Named("attach")

	stream := protocol.NewStream(conn, logger)
	defer stream.Close()

	v := view.New(
		stream,
		view.WithLogger(logger),
		view.WithDebounce(cfg.Editor.Debounce),
		view.WithRendererOptions(rendererOptions(cfg)...),
	)
	defer v.Dispose()

	if err := v.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	initialized := make(chan struct{})
	var once sync.Once

	g.Go(func() error {
		defer cancel()
		for {
			msg, err := stream.Receive(ctx)
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return err
			}
			if err := v.Handle(msg); err != nil {
				return err
			}

			switch msg.(type) {
			case protocol.Init, protocol.Update:
				content := v.Markdown()
				if format == formatHTML {
					content = v.HTML()
				}
				if _, err := fmt.Fprint(out, content); err != nil {
					return errors.WithStack(err)
				}
				once.Do(func() { close(initialized) })
			}
		}
	})

	// Reading in may block past the end of the session.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("failed to read input", zap.Error(err))
		}
	}()

	g.Go(func() error {
		select {
		case <-initialized:
		case <-ctx.Done():
			return nil
		}

		first := true
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					v.Flush()
					cancel()
					return nil
				}
				if !first {
					line = "\n" + line
				}
				first = false
				if err := v.InsertText(line); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}
