package charlie

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinProb is the floor applied to probabilities before
	// taking their logarithm.
	MinProb = 1e-12

	// SumTolerance is how far a probability vector's sum may
	// stray from 1.
	SumTolerance = 1e-3
)

// Rescale applies a temperature to a probability vector,
// computing exp(log(p)/t) and renormalizing.
//
// Temperatures below 1 sharpen the distribution and
// temperatures above 1 flatten it.
// Zero entries are floored to MinProb.
func Rescale(p []float64, temperature float64) ([]float64, error) {
	if err := checkTemperature(temperature); err != nil {
		return nil, err
	}
	if err := checkDistribution(p); err != nil {
		return nil, err
	}
	res := make([]float64, len(p))
	for i, x := range p {
		res[i] = math.Log(math.Max(x, MinProb)) / temperature
	}
	norm := floats.LogSumExp(res)
	for i, x := range res {
		res[i] = math.Exp(x - norm)
	}
	return res, nil
}

// A Sampler draws indices from temperature-scaled
// probability vectors.
//
// If Source is nil, the global math/rand/v2 generator is
// used. A Source must not be shared between goroutines.
type Sampler struct {
	Source rand.Source
}

// Sample rescales p by the temperature and returns the
// index of a single categorical trial.
func (s Sampler) Sample(p []float64, temperature float64) (int, error) {
	scaled, err := Rescale(p, temperature)
	if err != nil {
		return 0, err
	}
	dist := distuv.NewCategorical(scaled, s.Source)
	return int(dist.Rand()), nil
}

func checkTemperature(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, t)
	}
	return nil
}

func checkDistribution(p []float64) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidDistribution)
	}
	for i, x := range p {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return fmt.Errorf("%w: entry %d is %v", ErrInvalidDistribution, i, x)
		}
	}
	if sum := floats.Sum(p); math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("%w: sum is %v", ErrInvalidDistribution, sum)
	}
	return nil
}
