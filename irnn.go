package charlie

import (
	"context"
	"flag"

	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/mat"
)

const irnnIdentityScale = 1

func init() {
	var i IRNN
	serializer.RegisterTypedDeserializer(i.SerializerType(), DeserializeIRNN)
}

// IRNN is a Model built from ReLU RNN layers whose state
// weights start as a scaled identity matrix.
type IRNN struct {
	rnnTrainingFlags

	Block anyrnn.Block
}

// DeserializeIRNN deserializes an IRNN.
func DeserializeIRNN(d []byte) (*IRNN, error) {
	var b anyrnn.Block
	if err := serializer.DeserializeAny(d, &b); err != nil {
		return nil, essentials.AddCtx("deserialize IRNN", err)
	}
	return &IRNN{Block: b}, nil
}

func (i *IRNN) Name() string {
	return "irnn"
}

func (i *IRNN) TrainingFlags() *flag.FlagSet {
	return i.flagSet(i.Name())
}

func (i *IRNN) Train(t *TrainContext) error {
	if t.Vocab.Len() == 0 {
		return ErrEmptyVocab
	}
	if i.Block == nil {
		i.Block = stackBlocks(&i.rnnTrainingFlags, t.Vocab.Len(), i.newLayer)
	}
	return trainBlock(i.Block, &i.rnnTrainingFlags, t, i)
}

func (i *IRNN) Predict(ctx context.Context, window *mat.Dense) ([]float64, error) {
	return predictBlock(ctx, i.Block, window)
}

func (i *IRNN) SerializerType() string {
	return "github.com/JoshBarrios/Charlie.IRNN"
}

func (i *IRNN) Serialize() ([]byte, error) {
	return serializer.SerializeAny(i.Block)
}

func (i *IRNN) newLayer(in int) anyrnn.Block {
	c := anyvec32.CurrentCreator()
	layer := anyrnn.NewVanilla(c, in, i.Hidden, anynet.ReLU)
	identity := make([]float64, i.Hidden*i.Hidden)
	for j := 0; j < i.Hidden; j++ {
		identity[j*i.Hidden+j] = irnnIdentityScale
	}
	layer.StateWeights.Vector.SetData(c.MakeNumericList(identity))
	return layer
}
