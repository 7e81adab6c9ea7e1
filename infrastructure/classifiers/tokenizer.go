package classifiers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// WordPieceTokenizer is a BERT-compatible WordPiece tokenizer: lowercase,
// whitespace and punctuation splitting, then greedy longest-match-first
// subword lookup with "##" continuations.
type WordPieceTokenizer struct {
	vocab     map[string]int64
	lowerCase bool
	clsID     int64
	sepID     int64
	padID     int64
	unkID     int64
	// maxWordLen bounds the subword search; longer words map to [UNK].
	maxWordLen int
}

// NewWordPieceTokenizer builds a tokenizer from a token to id map. The
// vocabulary must contain [CLS], [SEP], [PAD] and [UNK].
func NewWordPieceTokenizer(vocab map[string]int64) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: vocab, lowerCase: true, maxWordLen: 100}
	for _, sp := range []struct {
		token string
		id    *int64
	}{
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
		{"[PAD]", &t.padID},
		{"[UNK]", &t.unkID},
	} {
		id, ok := vocab[sp.token]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing special token %s", sp.token)
		}
		*sp.id = id
	}
	return t, nil
}

// LoadWordPieceTokenizer reads vocab.txt (one token per line, id is the
// line number) or a tokenizer.json with a model.vocab map.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	var vocab map[string]int64
	if strings.EqualFold(filepath.Ext(path), ".json") {
		vocab, err = readTokenizerJSON(f)
	} else {
		vocab, err = readVocabText(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	return NewWordPieceTokenizer(vocab)
}

func readVocabText(r io.Reader) (map[string]int64, error) {
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token != "" {
			vocab[token] = idx
		}
		idx++
	}
	return vocab, sc.Err()
}

func readTokenizerJSON(r io.Reader) (map[string]int64, error) {
	var raw struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer.json has no model.vocab")
	}
	return raw.Model.Vocab, nil
}

// Encode converts text into exactly seqLen token ids and the matching
// attention mask. Sequences longer than seqLen are truncated and always
// keep the leading [CLS] and trailing [SEP].
func (t *WordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen < 2 {
		return nil, nil
	}

	ids := make([]int64, 0, seqLen)
	ids = append(ids, t.clsID)
	budget := seqLen - 1

outer:
	for _, word := range splitBasic(text) {
		if t.lowerCase {
			word = strings.ToLower(word)
		}
		for _, id := range t.wordPiece(word) {
			if len(ids) >= budget {
				break outer
			}
			ids = append(ids, id)
		}
	}
	ids = append(ids, t.sepID)

	mask := make([]int64, seqLen)
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < seqLen {
		ids = append(ids, t.padID)
	}
	return ids, mask
}

func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}
	if len([]rune(word)) > t.maxWordLen {
		return []int64{t.unkID}
	}

	var pieces []int64
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
	}
	return pieces
}

// splitBasic splits on whitespace and isolates every punctuation rune as
// its own word, as BERT's basic tokenizer does.
func splitBasic(text string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
