package remotesync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteHTML = `<h1 id="h1">Notes</h1><p class="line">Hello <b>world</b></p><ul><li>one</li><li>two</li></ul>`

func TestConverters(t *testing.T) {
	expected := "# Notes\n\nHello **world**\n\n- one\n- two"

	for _, name := range []string{ConverterCore, ConverterHTMLToMarkdown} {
		t.Run(name, func(t *testing.T) {
			convert, err := ConverterByName(name)
			require.NoError(t, err)

			result, err := convert(remoteHTML)
			require.NoError(t, err)
			assert.Equal(t, expected, strings.TrimSpace(result))
		})
	}
}

func TestCoreConverter_TrailingNewline(t *testing.T) {
	result, err := CoreConverter("<p>a</p>")
	require.NoError(t, err)
	assert.Equal(t, "a\n", result)
}

func TestConverterByName(t *testing.T) {
	_, err := ConverterByName("")
	assert.NoError(t, err)

	_, err = ConverterByName("pandoc")
	assert.EqualError(t, err, "unknown converter: pandoc")
}
