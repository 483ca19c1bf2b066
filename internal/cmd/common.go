package cmd

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/stateful/mdedit/internal/client"
	"github.com/stateful/mdedit/internal/config"
	"github.com/stateful/mdedit/internal/filestore"
	"github.com/stateful/mdedit/internal/log"
	"github.com/stateful/mdedit/internal/renderer/richtree"
	"github.com/stateful/mdedit/internal/version"
)

// readInput reads a file, stdin for "-" or an https URL.
func readInput(fileName string, stdin io.Reader) ([]byte, error) {
	switch {
	case fileName == "-":
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "failed to read from stdin")

	case strings.HasPrefix(fileName, "https://"):
		c := client.NewHTTPClient(
			&http.Client{Timeout: time.Second * 10},
			client.WithUserAgent(version.Short()),
			client.WithLogger(log.Get()),
		)
		resp, err := c.Get(fileName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get a file %q", fileName)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("failed to get a file %q: %s", fileName, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		return data, errors.Wrap(err, "failed to read body")

	default:
		data, err := os.ReadFile(fileName)
		return data, errors.Wrapf(err, "failed to read from file %q", fileName)
	}
}

func rendererOptions(c *config.Config) []richtree.Option {
	return []richtree.Option{
		richtree.WithHardWraps(c.Editor.HardWraps),
		richtree.WithTables(c.Editor.Tables),
		richtree.WithStrikethrough(c.Editor.Strikethrough),
	}
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// workspace returns a store over the working directory.
func workspace() (*filestore.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get cwd")
	}
	return filestore.NewOS(wd), nil
}
