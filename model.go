package charlie

import (
	"flag"
	"fmt"

	"github.com/unixpickle/serializer"
)

// A Model is a trainable language model for predicting
// the next character of a context window.
type Model interface {
	serializer.Serializer
	Predictor

	Name() string

	TrainingFlags() *flag.FlagSet

	Train(t *TrainContext) error
}

// A LearningRateSetter is a Model whose step size can be
// set directly, for learning rate sweeps.
type LearningRateSetter interface {
	SetLearningRate(rate float64)
}

var modelMakers = []func() Model{
	func() Model { return &LSTM{} },
	func() Model { return &IRNN{} },
	func() Model { return &Markov{} },
}

// Models returns a fresh, untrained instance of every
// available model type.
func Models() []Model {
	res := make([]Model, len(modelMakers))
	for i, f := range modelMakers {
		res[i] = f()
	}
	return res
}

// ModelForName creates an untrained model by name.
func ModelForName(name string) (Model, error) {
	for _, m := range Models() {
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no such model: %s", name)
}
