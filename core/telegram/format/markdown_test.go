package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdownV2(t *testing.T) {
	out, err := EscapeMarkdown("data/index.json (v1.2)!", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, `data/index\.json \(v1\.2\)\!`, out)
}

func TestEscapeMarkdownV1(t *testing.T) {
	out, err := EscapeMarkdown("a_b*c", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, `a\_b\*c`, out)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestKeyValues(t *testing.T) {
	got := KeyValues([2]string{"Topics", "2"}, [2]string{"Origin", "cache-hit"})
	assert.Equal(t, "*Topics:* 2\n*Origin:* cache\\-hit", got)
}
