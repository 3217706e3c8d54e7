package charlie

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func trainTestMarkov(t *testing.T, corpus string, feedback *bytes.Buffer) (*Markov, *TrainContext) {
	vocab := NewVocab(corpus)
	samples, err := NewSampleList(corpus, vocab, 8, 1)
	require.NoError(t, err)
	m := &Markov{History: 2, Smoothing: 0.001}
	tc := &TrainContext{
		Corpus:        corpus,
		Vocab:         vocab,
		Samples:       samples,
		Window:        8,
		FeedbackSteps: 20,
		Rand:          rand.New(rand.NewPCG(1, 1)),
	}
	if feedback != nil {
		tc.Feedback = feedback
	}
	require.NoError(t, m.Train(tc))
	return m, tc
}

func TestMarkovPredict(t *testing.T) {
	corpus := strings.Repeat("abc", 30)
	m, tc := trainTestMarkov(t, corpus, nil)

	window, err := tc.Vocab.Encode([]rune("abcabcab"))
	require.NoError(t, err)
	probs, err := m.Predict(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, probs, 3)
	assert.InDelta(t, 1, floats.Sum(probs), 1e-9)
	assert.Equal(t, 2, floats.MaxIdx(probs))
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
	}

	require.Len(t, tc.History, 1)
	assert.Less(t, tc.History[0].Loss, 0.1)
}

func TestMarkovBackoff(t *testing.T) {
	m := &Markov{
		History:   2,
		Smoothing: 0,
		VocabSize: 3,
		Counts: map[string]map[int]float64{
			"":  {0: 1, 1: 1, 2: 2},
			"1": {2: 4},
		},
	}
	assert.Equal(t, []float64{0.25, 0.25, 0.5}, m.distribution([]int{2, 0}))
	assert.Equal(t, []float64{0, 0, 1}, m.distribution([]int{0, 1}))

	empty := &Markov{VocabSize: 2}
	assert.Equal(t, []float64{0.5, 0.5}, empty.distribution(nil))
}

func TestMarkovGenerate(t *testing.T) {
	corpus := strings.Repeat("abc", 30)
	m, tc := trainTestMarkov(t, corpus, nil)
	gen := &Generator{Vocab: tc.Vocab, Predictor: m, Window: 8, Steps: 12}
	out, err := gen.Generate(context.Background(), "abcabcab", 0.2, rand.NewPCG(3, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, "abcabcab"+"cabcabcabcab", out)
}

func TestMarkovFeedback(t *testing.T) {
	var buf bytes.Buffer
	trainTestMarkov(t, strings.Repeat("hello world ", 10), &buf)
	text := buf.String()
	assert.Contains(t, text, "----- Generating text after Epoch: 0")
	for _, d := range DefaultDiversities {
		assert.Contains(t, text, "----- diversity: "+fmt.Sprint(d)+"\n")
	}
	assert.Equal(t, len(DefaultDiversities), strings.Count(text, "----- Generating with seed:"))
}

func TestMarkovWrongVocab(t *testing.T) {
	m, _ := trainTestMarkov(t, strings.Repeat("abc", 10), nil)
	window, err := NewVocab("abcd").Encode([]rune("abcd"))
	require.NoError(t, err)
	_, err = m.Predict(context.Background(), window)
	assert.Error(t, err)
}
