package charlie

import (
	"crypto/md5"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/unixpickle/anynet/anys2s"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
)

// DefaultStep is the default stride between the starts of
// consecutive training sequences.
const DefaultStep = 3

// ReadCorpus reads a UTF-8 text file and lowercases it.
func ReadCorpus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", essentials.AddCtx("read corpus", err)
	}
	return strings.ToLower(string(data)), nil
}

// RandomSeed picks a random window-length slice of the
// corpus.
func RandomSeed(corpus string, window int, r *rand.Rand) (string, error) {
	runes := []rune(corpus)
	if len(runes) <= window {
		return "", fmt.Errorf("%w: corpus has %d characters", ErrSeedTooShort, len(runes))
	}
	start := r.IntN(len(runes) - window)
	return string(runes[start : start+window]), nil
}

// A SampleList is a set of semi-redundant training
// sequences cut from a corpus.
//
// Each sample covers window+1 characters: the first window
// characters are the inputs and every input is paired with
// the character that follows it.
type SampleList struct {
	vocab  *Vocab
	text   []int
	starts []int
	window int
}

// NewSampleList cuts a sequence every step characters.
func NewSampleList(corpus string, v *Vocab, window, step int) (*SampleList, error) {
	if v.Len() == 0 {
		return nil, ErrEmptyVocab
	}
	if window <= 0 || step <= 0 {
		return nil, fmt.Errorf("invalid window %d or step %d", window, step)
	}
	var text []int
	for _, r := range corpus {
		idx, err := v.Index(r)
		if err != nil {
			return nil, essentials.AddCtx("sample list", err)
		}
		text = append(text, idx)
	}
	res := &SampleList{vocab: v, text: text, window: window}
	for i := 0; i+window < len(text); i += step {
		res.starts = append(res.starts, i)
	}
	return res, nil
}

// Len returns the number of samples.
func (s *SampleList) Len() int {
	return len(s.starts)
}

// Swap swaps two samples.
func (s *SampleList) Swap(i, j int) {
	s.starts[i], s.starts[j] = s.starts[j], s.starts[i]
}

// Slice copies a range of the list.
func (s *SampleList) Slice(i, j int) anysgd.SampleList {
	return &SampleList{
		vocab:  s.vocab,
		text:   s.text,
		starts: append([]int{}, s.starts[i:j]...),
		window: s.window,
	}
}

// LenAt returns the sequence length of a sample.
func (s *SampleList) LenAt(idx int) int {
	return s.window
}

// Hash hashes the text of a sample.
func (s *SampleList) Hash(idx int) []byte {
	h := md5.New()
	for _, x := range s.span(idx) {
		fmt.Fprintf(h, "%d,", x)
	}
	return h.Sum(nil)
}

// Creator returns the creator used for sample vectors.
func (s *SampleList) Creator() anyvec.Creator {
	return anyvec32.CurrentCreator()
}

// GetSample produces the one-hot input and target
// sequences for a sample.
func (s *SampleList) GetSample(idx int) (*anys2s.Sample, error) {
	span := s.span(idx)
	var res anys2s.Sample
	for t := 0; t < s.window; t++ {
		res.Input = append(res.Input, s.oneHot(span[t]))
		res.Output = append(res.Output, s.oneHot(span[t+1]))
	}
	return &res, nil
}

// Chars returns the number of characters covered by all
// of the samples, counting overlaps.
func (s *SampleList) Chars() int {
	return s.Len() * (s.window + 1)
}

func (s *SampleList) span(idx int) []int {
	start := s.starts[idx]
	return s.text[start : start+s.window+1]
}

func (s *SampleList) oneHot(idx int) anyvec.Vector {
	res := make([]float32, s.vocab.Len())
	res[idx] = 1
	return anyvec32.MakeVectorData(res)
}
