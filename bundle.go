package charlie

import (
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// A Bundle is a trained Model together with the
// vocabulary and window length it was trained with.
//
// Index assignment depends on the corpus, so the three are
// always saved and loaded together.
type Bundle struct {
	Vocab  *Vocab
	Window int
	Model  Model
}

// Generator creates a Generator for the bundle's model.
func (b *Bundle) Generator(steps int) *Generator {
	return &Generator{
		Vocab:     b.Vocab,
		Predictor: b.Model,
		Window:    b.Window,
		Steps:     steps,
	}
}

// SaveBundle writes a bundle to a file.
func SaveBundle(path string, b *Bundle) error {
	if b.Vocab == nil || b.Model == nil {
		return fmt.Errorf("save bundle: missing vocab or model")
	}
	return essentials.AddCtx("save bundle",
		serializer.SaveAny(path, b.Vocab, b.Window, b.Model))
}

// LoadBundle reads a bundle written by SaveBundle.
func LoadBundle(path string) (*Bundle, error) {
	var res Bundle
	if err := serializer.LoadAny(path, &res.Vocab, &res.Window, &res.Model); err != nil {
		return nil, essentials.AddCtx("load bundle", err)
	}
	if res.Window <= 0 {
		return nil, fmt.Errorf("load bundle: invalid window %d", res.Window)
	}
	return &res, nil
}
