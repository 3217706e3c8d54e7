package charlie

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anynet/anys2s"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/rip"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultRNNHidden     = 128
	defaultRNNLayers     = 2
	defaultRNNStepSize   = 0.001
	defaultRNNDropout    = 0.8
	defaultRNNBatchSize  = 512
	defaultRNNSortBatch  = 512
	defaultRNNValidation = 0.1
)

type rnnTrainingFlags struct {
	StepSize   float64
	Validation float64
	Dropout    float64
	Hidden     int
	Layers     int
	BatchSize  int
	SortBatch  int
}

func (r *rnnTrainingFlags) flagSet(name string) *flag.FlagSet {
	res := flag.NewFlagSet(name, flag.ExitOnError)
	res.IntVar(&r.Hidden, "hidden", defaultRNNHidden, "hidden neuron count")
	res.IntVar(&r.Layers, "layers", defaultRNNLayers, "recurrent layer count")
	res.Float64Var(&r.StepSize, "stepsize", defaultRNNStepSize, "step size")
	res.Float64Var(&r.Validation, "validation", defaultRNNValidation, "validation fraction")
	res.Float64Var(&r.Dropout, "dropout", defaultRNNDropout, "dropout remain probability")
	res.IntVar(&r.BatchSize, "batch", defaultRNNBatchSize, "SGD batch size")
	res.IntVar(&r.SortBatch, "sortbatch", defaultRNNSortBatch, "sample sort batch size")
	return res
}

// SetLearningRate sets the Adam step size.
func (r *rnnTrainingFlags) SetLearningRate(rate float64) {
	r.StepSize = rate
}

// stackBlocks builds the recurrent layers, each followed
// by dropout, and a log-softmax readout over the
// vocabulary.
func stackBlocks(f *rnnTrainingFlags, vocabSize int, layer func(in int) anyrnn.Block) anyrnn.Stack {
	c := anyvec32.CurrentCreator()
	block := anyrnn.Stack{}
	inCount := vocabSize
	for i := 0; i < f.Layers; i++ {
		dropout := &anyrnn.LayerBlock{Layer: &anynet.Dropout{KeepProb: f.Dropout}}
		block = append(block, layer(inCount), dropout)
		inCount = f.Hidden
	}
	return append(block, &anyrnn.LayerBlock{
		Layer: anynet.Net{
			anynet.NewFC(c, inCount, vocabSize),
			anynet.LogSoftmax,
		},
	})
}

func setDropout(block anyrnn.Block, enabled bool) {
	stack, ok := block.(anyrnn.Stack)
	if !ok {
		return
	}
	for _, b := range stack {
		if b, ok := b.(*anyrnn.LayerBlock); ok {
			if do, ok := b.Layer.(*anynet.Dropout); ok {
				do.Enabled = enabled
			}
		}
	}
}

// predictBlock feeds the window through the block one row
// at a time and turns the final log-probabilities into a
// probability vector.
func predictBlock(ctx context.Context, block anyrnn.Block, window *mat.Dense) ([]float64, error) {
	if block == nil {
		return nil, fmt.Errorf("predict: model is not trained")
	}
	rows, cols := window.Dims()
	c := anyvec32.CurrentCreator()
	state := block.Start(1)
	var out anyvec.Vector
	for t := 0; t < rows; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := c.MakeVectorData(c.MakeNumericList(window.RawRowView(t)))
		res := block.Step(state, in)
		state = res.State()
		out = res.Output()
	}
	logProbs := c.Float64Slice(out.Data())
	if len(logProbs) != cols {
		return nil, fmt.Errorf("predict: model outputs %d classes but window has %d",
			len(logProbs), cols)
	}
	probs := make([]float64, len(logProbs))
	for i, x := range logProbs {
		probs[i] = math.Exp(x)
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs, nil
}

// trainBlock trains the block to predict each next
// character of the training sequences.
//
// It runs until t.Done reports true or until the user
// presses ctrl+c.
func trainBlock(block anyrnn.Block, f *rnnTrainingFlags, t *TrainContext,
	p Predictor) error {
	validation, training := anysgd.HashSplit(t.Samples, f.Validation)
	if training.Len() == 0 {
		return fmt.Errorf("train: no training samples")
	}

	trainer := &anys2s.Trainer{
		Func: func(s anyseq.Seq) anyseq.Seq {
			return anyrnn.Map(s, block)
		},
		Cost:    anynet.DotCost{},
		Params:  anynet.AllParameters(block),
		Average: true,
	}

	log.Printf("Training: %d samples (%d chars)", training.Len(),
		training.(*SampleList).Chars())
	log.Printf("Validation: %d samples (%d chars)", validation.Len(),
		validation.(*SampleList).Chars())

	r := rip.NewRIP()
	defer r.Close()
	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { close(done) })
	}
	go func() {
		select {
		case <-r.Chan():
			stop()
		case <-t.context().Done():
			stop()
		case <-done:
		}
	}()

	c := anyvec32.CurrentCreator()
	var epoch, costCount int
	var costSum float64
	var epochErr error

	var sgd *anysgd.SGD
	sgd = &anysgd.SGD{
		Fetcher:     trainer,
		Gradienter:  trainer,
		Transformer: &anysgd.Adam{},
		Samples: &anys2s.SortSampleList{
			SortableSampleList: training.(*SampleList),
			BatchSize:          f.SortBatch,
		},
		Rater: anysgd.ConstRater(f.StepSize),
		StatusFunc: func(b anysgd.Batch) {
			// LastCost belongs to the previous batch.
			if trainer.LastCost != nil {
				costSum += c.Float64(trainer.LastCost)
				costCount++
			}
			if sgd.NumProcessed < (epoch+1)*training.Len() {
				return
			}

			stats := EpochStats{Epoch: epoch, Loss: costSum / float64(costCount)}
			setDropout(block, false)
			if validation.Len() > 0 {
				stats.Validation, epochErr = validationCost(trainer, validation,
					f.BatchSize)
			}
			if epochErr == nil {
				epochErr = t.EndEpoch(p, stats)
			}
			setDropout(block, true)

			epoch++
			costSum, costCount = 0, 0
			if epochErr != nil || t.Done(epoch) {
				stop()
			}
		},
		BatchSize: f.BatchSize,
	}

	log.Println("Training (ctrl+c to stop)...")
	setDropout(block, true)
	defer setDropout(block, false)
	if err := sgd.Run(done); err != nil {
		return err
	}
	return epochErr
}

func validationCost(t *anys2s.Trainer, validation anysgd.SampleList,
	batchSize int) (float64, error) {
	size := batchSize
	if size > validation.Len() {
		size = validation.Len()
	}
	anysgd.Shuffle(validation)
	batch, err := t.Fetch(validation.Slice(0, size))
	if err != nil {
		return 0, err
	}
	out := t.TotalCost(batch).Output()
	return out.Creator().Float64(anyvec.Sum(out)), nil
}
