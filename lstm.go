package charlie

import (
	"context"
	"flag"

	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/mat"
)

func init() {
	var l LSTM
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLSTM)
}

// LSTM is a Model built from stacked long short-term
// memory layers.
type LSTM struct {
	rnnTrainingFlags

	Block anyrnn.Block
}

// DeserializeLSTM deserializes an LSTM.
func DeserializeLSTM(d []byte) (*LSTM, error) {
	var b anyrnn.Block
	if err := serializer.DeserializeAny(d, &b); err != nil {
		return nil, essentials.AddCtx("deserialize LSTM", err)
	}
	return &LSTM{Block: b}, nil
}

func (l *LSTM) Name() string {
	return "lstm"
}

func (l *LSTM) TrainingFlags() *flag.FlagSet {
	return l.flagSet(l.Name())
}

func (l *LSTM) Train(t *TrainContext) error {
	if t.Vocab.Len() == 0 {
		return ErrEmptyVocab
	}
	if l.Block == nil {
		l.Block = stackBlocks(&l.rnnTrainingFlags, t.Vocab.Len(), l.newLayer)
	}
	return trainBlock(l.Block, &l.rnnTrainingFlags, t, l)
}

func (l *LSTM) Predict(ctx context.Context, window *mat.Dense) ([]float64, error) {
	return predictBlock(ctx, l.Block, window)
}

func (l *LSTM) SerializerType() string {
	return "github.com/JoshBarrios/Charlie.LSTM"
}

func (l *LSTM) Serialize() ([]byte, error) {
	return serializer.SerializeAny(l.Block)
}

func (l *LSTM) newLayer(in int) anyrnn.Block {
	return anyrnn.NewLSTM(anyvec32.CurrentCreator(), in, l.Hidden)
}
