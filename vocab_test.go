package charlie

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/serializer"
)

func TestNewVocab(t *testing.T) {
	v := NewVocab("Hello, World")
	assert.Equal(t, []rune(" ,dehlorw"), v.Chars())
	assert.Equal(t, 9, v.Len())

	chars := v.Chars()
	assert.True(t, sort.SliceIsSorted(chars, func(i, j int) bool {
		return chars[i] < chars[j]
	}))
	assert.Equal(t, v.Chars(), NewVocab("Hello, World").Chars())
}

func TestVocabUnicode(t *testing.T) {
	v := NewVocab("Ça va, élan")
	for _, r := range "ça va, élan" {
		_, err := v.Index(r)
		require.NoError(t, err)
	}
	_, err := v.Index('Ç')
	assert.ErrorIs(t, err, ErrUnknownCharacter)
}

func TestVocabRoundTrip(t *testing.T) {
	v := NewVocab("the quick brown fox jumps over the lazy dog.")
	for i, r := range v.Chars() {
		idx, err := v.Index(r)
		require.NoError(t, err)
		assert.Equal(t, i, idx)

		back, err := v.Char(idx)
		require.NoError(t, err)
		assert.Equal(t, r, back)

		vec, err := v.OneHot(r)
		require.NoError(t, err)
		decoded, err := v.Decode(vec)
		require.NoError(t, err)
		assert.Equal(t, r, decoded)
	}
}

func TestVocabErrors(t *testing.T) {
	v := NewVocab("abc")

	_, err := v.Index('z')
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = v.OneHot('z')
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = v.Char(-1)
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = v.Char(3)
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = v.Encode([]rune("abz"))
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = v.Decode([]float64{1, 0})
	assert.Error(t, err)
}

func TestVocabEncode(t *testing.T) {
	v := NewVocab("abc")
	x, err := v.Encode([]rune("cab"))
	require.NoError(t, err)
	rows, cols := x.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 3, cols)
	expected := [][]float64{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}}
	for i, row := range expected {
		assert.Equal(t, row, x.RawRowView(i))
	}
}

func TestEmptyVocab(t *testing.T) {
	v := NewVocab("")
	assert.Equal(t, 0, v.Len())
	_, err := v.Encode([]rune("a"))
	assert.ErrorIs(t, err, ErrEmptyVocab)
	_, err = v.Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyVocab)
}

func TestVocabSerialize(t *testing.T) {
	v := NewVocab("some text, with Ünïcode!")
	data, err := serializer.SerializeWithType(v)
	require.NoError(t, err)
	obj, err := serializer.DeserializeWithType(data)
	require.NoError(t, err)
	decoded, ok := obj.(*Vocab)
	require.True(t, ok, "decoded %T", obj)
	assert.Equal(t, v.Chars(), decoded.Chars())

	idx, err := decoded.Index('ü')
	require.NoError(t, err)
	expected, _ := v.Index('ü')
	assert.Equal(t, expected, idx)
}

func TestDeserializeVocabUnsorted(t *testing.T) {
	_, err := DeserializeVocab([]byte(`"ba"`))
	assert.Error(t, err)
}
