package charlie

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/unixpickle/essentials"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultWindow is the default context window length.
const DefaultWindow = 40

// A Predictor maps a one-hot context window (one row per
// character, one column per vocabulary entry) to a
// probability vector for the next character.
//
// Predictors used with GenerateAll must be safe to call
// from multiple goroutines.
type Predictor interface {
	Predict(ctx context.Context, window *mat.Dense) ([]float64, error)
}

// PredictorFunc is a Predictor backed by a function.
type PredictorFunc func(ctx context.Context, window *mat.Dense) ([]float64, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, window *mat.Dense) ([]float64, error) {
	return f(ctx, window)
}

// A Generator extends seed text one character at a time by
// sliding a fixed-length window through a Predictor.
type Generator struct {
	Vocab     *Vocab
	Predictor Predictor

	// Window is the context length.
	// If it is not positive, DefaultWindow is used.
	Window int

	// Steps is the number of characters to generate.
	Steps int

	// MaxParallel limits the number of concurrent runs in
	// GenerateAll. If it is 0, there is no limit.
	MaxParallel int
}

// A Result is the output of one generation run.
type Result struct {
	Temperature float64
	Text        string
}

// Generate produces the seed followed by g.Steps sampled
// characters.
//
// The window starts as the last g.Window characters of the
// seed. If emit is non-nil, it is called with each new
// character as soon as it is sampled; an error from emit
// stops generation.
//
// On failure, the text generated so far is returned along
// with the error.
func (g *Generator) Generate(ctx context.Context, seed string, temperature float64,
	src rand.Source, emit func(rune) error) (string, error) {
	if err := checkTemperature(temperature); err != nil {
		return "", err
	}
	if g.Vocab == nil || g.Vocab.Len() == 0 {
		return "", ErrEmptyVocab
	}
	size := g.windowSize()
	seedRunes := []rune(seed)
	if len(seedRunes) < size {
		return "", fmt.Errorf("%w: %d < %d", ErrSeedTooShort, len(seedRunes), size)
	}
	window := append([]rune{}, seedRunes[len(seedRunes)-size:]...)

	var out strings.Builder
	out.WriteString(seed)

	sampler := Sampler{Source: src}
	for i := 0; i < g.Steps; i++ {
		next, err := g.step(ctx, sampler, window, temperature)
		if err != nil {
			return out.String(), essentials.AddCtx(fmt.Sprintf("step %d", i), err)
		}
		copy(window, window[1:])
		window[size-1] = next
		out.WriteRune(next)
		if emit != nil {
			if err := emit(next); err != nil {
				return out.String(), err
			}
		}
	}
	return out.String(), nil
}

// GenerateAll runs Generate once per temperature.
//
// Runs are independent and execute concurrently, each with
// its own window and a PCG stream derived from randSeed and
// the run's position in temps.
// If emit is non-nil, it may be called from several
// goroutines at once.
//
// Results are in the same order as temps.
func (g *Generator) GenerateAll(ctx context.Context, seed string, temps []float64,
	randSeed uint64, emit func(temperature float64, r rune) error) ([]Result, error) {
	for _, t := range temps {
		if err := checkTemperature(t); err != nil {
			return nil, err
		}
	}
	results := make([]Result, len(temps))
	group, ctx := errgroup.WithContext(ctx)
	if g.MaxParallel > 0 {
		group.SetLimit(g.MaxParallel)
	}
	for i, t := range temps {
		group.Go(func() error {
			var runEmit func(rune) error
			if emit != nil {
				runEmit = func(r rune) error {
					return emit(t, r)
				}
			}
			src := rand.NewPCG(randSeed, uint64(i))
			text, err := g.Generate(ctx, seed, t, src, runEmit)
			if err != nil {
				return essentials.AddCtx(fmt.Sprintf("temperature %v", t), err)
			}
			results[i] = Result{Temperature: t, Text: text}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Generator) step(ctx context.Context, s Sampler, window []rune,
	temperature float64) (rune, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x, err := g.Vocab.Encode(window)
	if err != nil {
		return 0, err
	}
	probs, err := g.Predictor.Predict(ctx, x)
	if err != nil {
		return 0, essentials.AddCtx("predict", err)
	}
	if len(probs) != g.Vocab.Len() {
		return 0, fmt.Errorf("%w: got %d probabilities for %d characters",
			ErrInvalidDistribution, len(probs), g.Vocab.Len())
	}
	idx, err := s.Sample(probs, temperature)
	if err != nil {
		return 0, err
	}
	return g.Vocab.Char(idx)
}

func (g *Generator) windowSize() int {
	if g.Window <= 0 {
		return DefaultWindow
	}
	return g.Window
}
