package classifiers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\nthe\nearth\nis\nflat\n!\nun\n##believ\n##able\n"

func writeVocab(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(testVocab), 0o600))
	return path
}

func TestWordPieceTokenizer_Encode(t *testing.T) {
	tok, err := LoadWordPieceTokenizer(writeVocab(t))
	require.NoError(t, err)

	ids, mask := tok.Encode("The Earth is FLAT! Unbelievable zzz", 12)

	// [CLS] the earth is flat ! un ##believ ##able [UNK] [SEP] [PAD]
	assert.Equal(t, []int64{2, 4, 5, 6, 7, 8, 9, 10, 11, 1, 3, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0}, mask)
}

func TestWordPieceTokenizer_Truncates(t *testing.T) {
	tok, err := LoadWordPieceTokenizer(writeVocab(t))
	require.NoError(t, err)

	ids, mask := tok.Encode("the earth is flat the earth is flat", 5)

	assert.Equal(t, []int64{2, 4, 5, 6, 3}, ids, "keeps [CLS] and [SEP] around truncated tokens")
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, mask)
}

func TestWordPieceTokenizer_JSONVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	body := `{"model":{"vocab":{"[PAD]":0,"[UNK]":1,"[CLS]":2,"[SEP]":3,"flat":4}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tok, err := LoadWordPieceTokenizer(path)
	require.NoError(t, err)

	ids, _ := tok.Encode("flat", 4)
	assert.Equal(t, []int64{2, 4, 3, 0}, ids)
}

func TestNewWordPieceTokenizer_MissingSpecials(t *testing.T) {
	_, err := NewWordPieceTokenizer(map[string]int64{"[CLS]": 0, "[SEP]": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[PAD]")
}

func TestSplitBasic(t *testing.T) {
	assert.Equal(t, []string{"wake", "up", ",", "sheeple", "!", "!"}, splitBasic("wake up, sheeple!!"))
	assert.Empty(t, splitBasic("  \n\t "))
}
