package charlie

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/floats"
)

func testRNNFlags() rnnTrainingFlags {
	return rnnTrainingFlags{
		StepSize:  0.01,
		Dropout:   1,
		Hidden:    8,
		Layers:    2,
		BatchSize: 8,
		SortBatch: 8,
	}
}

func TestLSTMPredict(t *testing.T) {
	vocab := NewVocab(testSeed)
	l := &LSTM{rnnTrainingFlags: testRNNFlags()}
	l.Block = stackBlocks(&l.rnnTrainingFlags, vocab.Len(), l.newLayer)

	window, err := vocab.Encode([]rune(testSeed))
	require.NoError(t, err)
	probs, err := l.Predict(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, probs, vocab.Len())
	assert.InDelta(t, 1, floats.Sum(probs), 1e-6)
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
	}

	gen := &Generator{Vocab: vocab, Predictor: l, Steps: 10}
	out, err := gen.Generate(context.Background(), testSeed, 1, rand.NewPCG(1, 1), nil)
	require.NoError(t, err)
	assert.Len(t, []rune(out), len(testSeed)+10)
}

func TestLSTMSerialize(t *testing.T) {
	vocab := NewVocab(testSeed)
	l := &LSTM{rnnTrainingFlags: testRNNFlags()}
	l.Block = stackBlocks(&l.rnnTrainingFlags, vocab.Len(), l.newLayer)

	data, err := serializer.SerializeWithType(l)
	require.NoError(t, err)
	obj, err := serializer.DeserializeWithType(data)
	require.NoError(t, err)
	decoded, ok := obj.(*LSTM)
	require.True(t, ok, "decoded %T", obj)

	window, err := vocab.Encode([]rune(testSeed))
	require.NoError(t, err)
	expected, err := l.Predict(context.Background(), window)
	require.NoError(t, err)
	actual, err := decoded.Predict(context.Background(), window)
	require.NoError(t, err)
	assert.InDeltaSlice(t, expected, actual, 1e-5)
}

func TestLSTMUntrained(t *testing.T) {
	vocab := NewVocab("abc")
	window, err := vocab.Encode([]rune("abc"))
	require.NoError(t, err)
	_, err = (&LSTM{}).Predict(context.Background(), window)
	assert.Error(t, err)
}

func TestLSTMTrain(t *testing.T) {
	corpus := strings.Repeat("the male of the species ", 6)
	vocab := NewVocab(corpus)
	samples, err := NewSampleList(corpus, vocab, 10, 3)
	require.NoError(t, err)

	var feedback bytes.Buffer
	l := &LSTM{rnnTrainingFlags: testRNNFlags()}
	tc := &TrainContext{
		Context:       context.Background(),
		Corpus:        corpus,
		Vocab:         vocab,
		Samples:       samples,
		Window:        10,
		Epochs:        2,
		Feedback:      &feedback,
		FeedbackSteps: 5,
		Diversities:   []float64{0.5},
		Rand:          rand.New(rand.NewPCG(2, 2)),
	}
	require.NoError(t, l.Train(tc))
	require.NotNil(t, l.Block)

	require.Len(t, tc.History, 2)
	assert.Equal(t, 0, tc.History[0].Epoch)
	assert.Equal(t, 1, tc.History[1].Epoch)
	for _, stats := range tc.History {
		assert.Greater(t, stats.Loss, 0.0)
	}
	assert.Equal(t, 2, strings.Count(feedback.String(), "----- Generating text after Epoch"))
}

func TestIRNNPredict(t *testing.T) {
	vocab := NewVocab(testSeed)
	i := &IRNN{rnnTrainingFlags: testRNNFlags()}
	i.Block = stackBlocks(&i.rnnTrainingFlags, vocab.Len(), i.newLayer)

	window, err := vocab.Encode([]rune(testSeed))
	require.NoError(t, err)
	probs, err := i.Predict(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, probs, vocab.Len())
	assert.InDelta(t, 1, floats.Sum(probs), 1e-6)

	data, err := serializer.SerializeWithType(i)
	require.NoError(t, err)
	obj, err := serializer.DeserializeWithType(data)
	require.NoError(t, err)
	assert.IsType(t, &IRNN{}, obj)
}

func TestModelForName(t *testing.T) {
	for _, name := range []string{"lstm", "irnn", "markov"} {
		m, err := ModelForName(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
		assert.NotNil(t, m.TrainingFlags())
	}
	_, err := ModelForName("gru")
	assert.Error(t, err)

	a, _ := ModelForName("lstm")
	b, _ := ModelForName("lstm")
	assert.NotSame(t, a, b)
}

func TestLearningRateSetter(t *testing.T) {
	m, err := ModelForName("lstm")
	require.NoError(t, err)
	setter, ok := m.(LearningRateSetter)
	require.True(t, ok)
	setter.SetLearningRate(0.005)
	assert.Equal(t, 0.005, m.(*LSTM).StepSize)

	var markov Model = &Markov{}
	_, ok = markov.(LearningRateSetter)
	assert.False(t, ok)
}
