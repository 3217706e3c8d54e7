package charlie

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"

	"github.com/unixpickle/essentials"
)

const (
	DefaultEpochs        = 40
	DefaultFeedbackSteps = 400
)

// DefaultDiversities are the temperatures used for the
// text printed after each training epoch.
var DefaultDiversities = []float64{0.2, 0.5, 1.0, 1.2}

// EpochStats summarizes one pass over the training set.
type EpochStats struct {
	Epoch      int     `json:"epoch"`
	Loss       float64 `json:"loss"`
	Validation float64 `json:"val_loss,omitempty"`
}

// History is the per-epoch record of a training run.
type History []EpochStats

// Save writes the history as JSON.
func (h History) Save(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return essentials.AddCtx("save history", err)
	}
	return essentials.AddCtx("save history", os.WriteFile(path, data, 0644))
}

// LoadHistory reads a history written by History.Save.
func LoadHistory(path string) (History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load history", err)
	}
	var res History
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("load history", err)
	}
	return res, nil
}

// A TrainContext holds everything a Model needs to train
// and to report on its progress.
type TrainContext struct {
	Context context.Context

	Corpus  string
	Vocab   *Vocab
	Samples *SampleList
	Window  int

	// Epochs is the number of passes over the data.
	// If it is 0, training runs until interrupted.
	Epochs int

	// Feedback, if non-nil, receives generated text at the
	// end of every epoch.
	Feedback      io.Writer
	FeedbackSteps int
	Diversities   []float64

	// Rand is used to choose feedback seeds and to sample.
	// If nil, a randomly seeded generator is used.
	Rand *rand.Rand

	History History
}

// Done reports whether the given number of completed
// epochs reaches the epoch limit.
func (t *TrainContext) Done(completed int) bool {
	if t.Context != nil && t.Context.Err() != nil {
		return true
	}
	return t.Epochs > 0 && completed >= t.Epochs
}

// EndEpoch records the epoch statistics and writes sample
// text produced by p to t.Feedback.
func (t *TrainContext) EndEpoch(p Predictor, stats EpochStats) error {
	t.History = append(t.History, stats)
	if stats.Validation != 0 {
		log.Printf("Epoch %d: cost=%f validation=%f", stats.Epoch, stats.Loss,
			stats.Validation)
	} else {
		log.Printf("Epoch %d: cost=%f", stats.Epoch, stats.Loss)
	}
	if t.Feedback == nil {
		return nil
	}

	r := t.rand()
	seed, err := RandomSeed(t.Corpus, t.window(), r)
	if err != nil {
		return essentials.AddCtx("epoch feedback", err)
	}
	gen := &Generator{
		Vocab:     t.Vocab,
		Predictor: p,
		Window:    t.window(),
		Steps:     t.FeedbackSteps,
	}
	if gen.Steps == 0 {
		gen.Steps = DefaultFeedbackSteps
	}
	diversities := t.Diversities
	if diversities == nil {
		diversities = DefaultDiversities
	}

	w := t.Feedback
	fmt.Fprintf(w, "\n----- Generating text after Epoch: %d\n", stats.Epoch)
	for _, d := range diversities {
		fmt.Fprintln(w, "----- diversity:", d)
		fmt.Fprintf(w, "----- Generating with seed: \"%s\"\n", seed)
		io.WriteString(w, seed)
		_, err := gen.Generate(t.context(), seed, d, r, func(ch rune) error {
			_, err := io.WriteString(w, string(ch))
			return err
		})
		fmt.Fprintln(w)
		if err != nil {
			return essentials.AddCtx("epoch feedback", err)
		}
	}
	return nil
}

func (t *TrainContext) context() context.Context {
	if t.Context == nil {
		return context.Background()
	}
	return t.Context
}

func (t *TrainContext) window() int {
	if t.Window <= 0 {
		return DefaultWindow
	}
	return t.Window
}

func (t *TrainContext) rand() *rand.Rand {
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return t.Rand
}
