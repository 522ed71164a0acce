package runtime

import (
	"chat-relay/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll_Embedded(t *testing.T) {
	req := require.New(t)

	data, err := DefaultCensoredLoader().LoadAll("censored")

	req.NoError(err)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.Contains(data.Words, "moron")
	req.NotContains(data.Words, "badger")
	req.Contains(data.Words, "cretin")
}

func TestCensoredLoader_Deduplicates_And_Skips_Blank_Lines(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt":    {Data: []byte("snake\r\n\r\nbadger\n")},
		"words/de.txt":    {Data: []byte("badger\n  \n")},
		"words/readme.md": {Data: []byte("ignored")},
		"words/sub/x.txt": {Data: []byte("ignored")},
	}

	data, err := NewCensoredLoader(fsys).LoadAll("words")

	req.NoError(err)
	req.ElementsMatch([]string{"snake", "badger"}, data.Words)
	req.ElementsMatch([]string{"en", "de"}, data.Languages)
}

func TestCensoredLoader_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"words/en.txt": {Data: []byte("\n\n")}}

	_, err := NewCensoredLoader(fsys).LoadAll("words")

	req.ErrorIs(err, errors.ErrEmptyWords)
}
