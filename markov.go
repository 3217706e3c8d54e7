package charlie

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func init() {
	var m Markov
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeMarkov)
}

// Markov is a Model for a character-level Markov chain.
//
// Predictions back off to shorter histories when the full
// history was never seen, and are smoothed so that every
// character has a non-zero probability.
type Markov struct {
	// Counts maps a history (comma-separated vocab indices)
	// to next-character counts.
	Counts    map[string]map[int]float64
	History   int
	Smoothing float64
	VocabSize int

	Validation float64 `json:"-"`
}

// DeserializeMarkov deserializes a Markov.
func DeserializeMarkov(d []byte) (*Markov, error) {
	var res Markov
	if err := json.Unmarshal(d, &res); err != nil {
		return nil, essentials.AddCtx("deserialize Markov", err)
	}
	return &res, nil
}

func (m *Markov) Name() string {
	return "markov"
}

func (m *Markov) TrainingFlags() *flag.FlagSet {
	f := flag.NewFlagSet("markov", flag.ExitOnError)
	f.IntVar(&m.History, "order", 3, "characters of history per prediction")
	f.Float64Var(&m.Smoothing, "smoothing", 0.01, "additive smoothing per character")
	f.Float64Var(&m.Validation, "validation", 0.1, "validation fraction")
	return f
}

func (m *Markov) Train(t *TrainContext) error {
	if t.Vocab.Len() == 0 {
		return ErrEmptyVocab
	}
	validation, training := anysgd.HashSplit(t.Samples, m.Validation)
	log.Printf("Training: %d samples (%d chars)", training.Len(),
		training.(*SampleList).Chars())
	log.Printf("Validation: %d samples (%d chars)", validation.Len(),
		validation.(*SampleList).Chars())

	m.VocabSize = t.Vocab.Len()
	m.Counts = map[string]map[int]float64{}

	log.Println("Producing chain...")
	samples := training.(*SampleList)
	for i := 0; i < samples.Len(); i++ {
		span := samples.span(i)
		for j := 1; j < len(span); j++ {
			for h := 0; h <= m.History && h <= j; h++ {
				key := stateKey(span[j-h : j])
				if m.Counts[key] == nil {
					m.Counts[key] = map[int]float64{}
				}
				m.Counts[key][span[j]]++
			}
		}
	}

	log.Println("Computing cross-entropy...")
	stats := EpochStats{Loss: m.averageEntropy(samples)}
	if validation.Len() > 0 {
		stats.Validation = m.averageEntropy(validation.(*SampleList))
	}
	return t.EndEpoch(m, stats)
}

// Predict returns the smoothed next-character distribution
// for the last m.History characters of the window.
func (m *Markov) Predict(ctx context.Context, window *mat.Dense) ([]float64, error) {
	rows, cols := window.Dims()
	if cols != m.VocabSize {
		return nil, fmt.Errorf("predict: window has %d classes but chain has %d",
			cols, m.VocabSize)
	}
	history := make([]int, 0, m.History)
	for t := rows - m.History; t < rows; t++ {
		if t < 0 {
			continue
		}
		history = append(history, floats.MaxIdx(window.RawRowView(t)))
	}
	return m.distribution(history), nil
}

func (m *Markov) SerializerType() string {
	return "github.com/JoshBarrios/Charlie.Markov"
}

func (m *Markov) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Markov) distribution(history []int) []float64 {
	var counts map[int]float64
	for h := len(history); h >= 0; h-- {
		if c, ok := m.Counts[stateKey(history[len(history)-h:])]; ok {
			counts = c
			break
		}
	}
	res := make([]float64, m.VocabSize)
	for i := range res {
		res[i] = m.Smoothing + counts[i]
	}
	if sum := floats.Sum(res); sum > 0 {
		floats.Scale(1/sum, res)
	} else {
		for i := range res {
			res[i] = 1 / float64(len(res))
		}
	}
	return res
}

func (m *Markov) averageEntropy(s *SampleList) float64 {
	var total, count float64
	for i := 0; i < s.Len(); i++ {
		span := s.span(i)
		for j := 1; j < len(span); j++ {
			start := j - m.History
			if start < 0 {
				start = 0
			}
			p := m.distribution(span[start:j])[span[j]]
			total -= math.Log(math.Max(p, MinProb))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / count
}

func stateKey(history []int) string {
	parts := make([]string, len(history))
	for i, x := range history {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
