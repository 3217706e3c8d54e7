package charlie

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/mat"
)

func init() {
	var v Vocab
	serializer.RegisterTypedDeserializer(v.SerializerType(), DeserializeVocab)
}

// A Vocab is a sorted set of characters with a fixed index
// assignment.
//
// A Vocab is immutable once created and may be shared
// between goroutines.
type Vocab struct {
	chars   []rune
	indices map[rune]int
}

// NewVocab creates a Vocab from every distinct character
// in the lowercased corpus.
func NewVocab(corpus string) *Vocab {
	seen := map[rune]bool{}
	for _, r := range strings.ToLower(corpus) {
		seen[r] = true
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool {
		return chars[i] < chars[j]
	})
	return newVocabChars(chars)
}

func newVocabChars(chars []rune) *Vocab {
	v := &Vocab{chars: chars, indices: make(map[rune]int, len(chars))}
	for i, r := range chars {
		v.indices[r] = i
	}
	return v
}

// DeserializeVocab deserializes a Vocab.
func DeserializeVocab(d []byte) (*Vocab, error) {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return nil, essentials.AddCtx("deserialize vocab", err)
	}
	chars := []rune(s)
	for i := 1; i < len(chars); i++ {
		if chars[i-1] >= chars[i] {
			return nil, fmt.Errorf("deserialize vocab: characters not sorted at %d", i)
		}
	}
	return newVocabChars(chars), nil
}

// Len returns the number of characters.
func (v *Vocab) Len() int {
	return len(v.chars)
}

// Chars returns a copy of the sorted characters.
func (v *Vocab) Chars() []rune {
	return append([]rune{}, v.chars...)
}

// Index returns the index of a character.
func (v *Vocab) Index(r rune) (int, error) {
	idx, ok := v.indices[r]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCharacter, r)
	}
	return idx, nil
}

// Char returns the character at an index.
func (v *Vocab) Char(idx int) (rune, error) {
	if idx < 0 || idx >= len(v.chars) {
		return 0, fmt.Errorf("%w: index %d out of %d", ErrUnknownCharacter, idx,
			len(v.chars))
	}
	return v.chars[idx], nil
}

// OneHot encodes a character as a unit vector.
func (v *Vocab) OneHot(r rune) ([]float64, error) {
	idx, err := v.Index(r)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(v.chars))
	res[idx] = 1
	return res, nil
}

// Encode produces a len(window) x v.Len() matrix in which
// each row is the one-hot vector for a character.
func (v *Vocab) Encode(window []rune) (*mat.Dense, error) {
	if len(v.chars) == 0 {
		return nil, ErrEmptyVocab
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("encode: empty window")
	}
	res := mat.NewDense(len(window), len(v.chars), nil)
	for t, r := range window {
		idx, err := v.Index(r)
		if err != nil {
			return nil, err
		}
		res.Set(t, idx, 1)
	}
	return res, nil
}

// Decode maps a one-hot (or any score) vector back to the
// character with the largest entry.
func (v *Vocab) Decode(row []float64) (rune, error) {
	if len(v.chars) == 0 {
		return 0, ErrEmptyVocab
	}
	if len(row) != len(v.chars) {
		return 0, fmt.Errorf("decode: vector length %d does not match vocab size %d",
			len(row), len(v.chars))
	}
	best := 0
	for i, x := range row {
		if x > row[best] {
			best = i
		}
	}
	return v.chars[best], nil
}

// SerializerType returns the unique ID used to serialize
// a Vocab with the serializer package.
func (v *Vocab) SerializerType() string {
	return "github.com/JoshBarrios/Charlie.Vocab"
}

// Serialize serializes the Vocab.
func (v *Vocab) Serialize() ([]byte, error) {
	return json.Marshal(string(v.chars))
}
