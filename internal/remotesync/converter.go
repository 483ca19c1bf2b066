package remotesync

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/pkg/errors"

	"github.com/stateful/mdedit/internal/renderer/md"
)

// Converter turns the HTML of a remote document into Markdown.
type Converter func(html string) (string, error)

const (
	ConverterCore           = "core"
	ConverterHTMLToMarkdown = "html-to-markdown"
)

// CoreConverter goes through the rich tree, so pulled documents are
// already in the form the editor writes.
func CoreConverter(html string) (string, error) {
	return md.RenderMarkup(html), nil
}

func HTMLToMarkdownConverter(html string) (string, error) {
	result, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert HTML to markdown")
	}
	return result, nil
}

func ConverterByName(name string) (Converter, error) {
	switch name {
	case "", ConverterCore:
		return CoreConverter, nil
	case ConverterHTMLToMarkdown:
		return HTMLToMarkdownConverter, nil
	default:
		return nil, errors.Errorf("unknown converter: %s", name)
	}
}
