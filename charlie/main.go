package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	charlie "github.com/JoshBarrios/Charlie"
	"github.com/unixpickle/essentials"
)

const (
	defaultSeed  = "the male of the species exhibits curious"
	defaultTemps = "0.5,1.0"
	defaultSteps = 400

	OutputPermissions = 0755
)

func main() {
	if len(os.Args) < 2 {
		dieUsage()
	}
	subCmd := os.Args[1]
	switch subCmd {
	case "train":
		trainCommand()
	case "gen":
		genCommand()
	case "help":
		helpCommand()
	default:
		dieUsage()
	}
}

func trainCommand() {
	if len(os.Args) < 5 {
		dieUsage()
	}
	modelName := os.Args[2]
	bundleFile := os.Args[3]
	corpusFile := os.Args[4]
	args := os.Args[5:]

	corpus, err := charlie.ReadCorpus(corpusFile)
	if err != nil {
		essentials.Die(err)
	}
	log.Println("corpus length:", len([]rune(corpus)))

	opts := parseTrainFlags(modelForName(modelName), args)
	if opts.Rates == "" {
		trainOne(modelName, bundleFile, opts.History, corpus, args, 0)
		return
	}
	rates, err := parseFloats(opts.Rates)
	if err != nil {
		essentials.Die("Invalid rates:", err)
	}
	for _, rate := range rates {
		dir := bundleFile + "LR" + strconv.FormatFloat(rate, 'g', -1, 64)
		if err := os.MkdirAll(dir, OutputPermissions); err != nil {
			essentials.Die(err)
		}
		log.Println("Training with learning rate", rate)
		trainOne(modelName, filepath.Join(dir, "model"), filepath.Join(dir, "history.json"),
			corpus, args, rate)
	}
}

type trainOptions struct {
	Window  int
	Step    int
	Epochs  int
	Rates   string
	History string
	Quiet   bool
}

// trainFlags adds the shared training flags to the
// model's own flags.
func trainFlags(model charlie.Model, opts *trainOptions) *flag.FlagSet {
	f := model.TrainingFlags()
	f.IntVar(&opts.Window, "window", charlie.DefaultWindow, "context window length")
	f.IntVar(&opts.Step, "step", charlie.DefaultStep, "stride between training sequences")
	f.IntVar(&opts.Epochs, "epochs", charlie.DefaultEpochs, "epochs to train (0 = until ctrl+c)")
	f.StringVar(&opts.Rates, "rates", "", "comma-separated learning rates to sweep")
	f.StringVar(&opts.History, "history", "", "file for per-epoch loss history")
	f.BoolVar(&opts.Quiet, "quiet", false, "skip text generation after each epoch")
	return f
}

func parseTrainFlags(model charlie.Model, args []string) *trainOptions {
	opts := &trainOptions{}
	trainFlags(model, opts).Parse(args)
	return opts
}

func trainOne(modelName, bundleFile, historyFile, corpus string, args []string, rate float64) {
	model := modelForName(modelName)
	opts := parseTrainFlags(model, args)
	vocab := charlie.NewVocab(corpus)
	window := opts.Window

	if rate == 0 {
		if bundle, err := charlie.LoadBundle(bundleFile); err == nil {
			if bundle.Model.Name() != model.Name() {
				essentials.Die("Bundle holds a", bundle.Model.Name(), "model, not", model.Name())
			}
			// Keep the training flags from the command line.
			model = bundle.Model
			parseTrainFlags(model, args)
			vocab, window = bundle.Vocab, bundle.Window
			log.Println("Loaded model from file.")
		} else {
			log.Println("Created new model.")
		}
	} else {
		setter, ok := model.(charlie.LearningRateSetter)
		if !ok {
			essentials.Die("Model", model.Name(), "does not take a learning rate")
		}
		setter.SetLearningRate(rate)
	}

	if vocab.Len() == 0 {
		essentials.Die(charlie.ErrEmptyVocab)
	}
	log.Println("total chars:", vocab.Len())

	samples, err := charlie.NewSampleList(corpus, vocab, window, opts.Step)
	if err != nil {
		essentials.Die(err)
	}
	log.Println("nb sequences:", samples.Len())

	t := &charlie.TrainContext{
		Context: context.Background(),
		Corpus:  corpus,
		Vocab:   vocab,
		Samples: samples,
		Window:  window,
		Epochs:  opts.Epochs,
	}
	if !opts.Quiet {
		t.Feedback = os.Stdout
	}
	if err := model.Train(t); err != nil {
		essentials.Die("Failed to train:", err)
	}

	bundle := &charlie.Bundle{Vocab: vocab, Window: window, Model: model}
	if err := charlie.SaveBundle(bundleFile, bundle); err != nil {
		essentials.Die("Failed to save:", err)
	}
	if historyFile != "" {
		if err := t.History.Save(historyFile); err != nil {
			essentials.Die(err)
		}
	}
}

func genCommand() {
	if len(os.Args) < 3 {
		dieUsage()
	}

	f := flag.NewFlagSet("gen", flag.ExitOnError)
	seed := f.String("seed", defaultSeed, "seed text (at least one window long)")
	temps := f.String("temps", defaultTemps, "comma-separated temperatures")
	steps := f.Int("steps", defaultSteps, "characters to generate per temperature")
	randSeed := f.Uint64("randseed", 0, "random seed (0 = random)")
	parallel := f.Bool("parallel", false, "generate all temperatures concurrently")
	f.Parse(os.Args[3:])

	bundle, err := charlie.LoadBundle(os.Args[2])
	if err != nil {
		essentials.Die(err)
	}
	temperatures, err := parseFloats(*temps)
	if err != nil {
		essentials.Die("Invalid temperatures:", err)
	}
	if *randSeed == 0 {
		*randSeed = rand.Uint64()
	}

	text := strings.ToLower(*seed)
	gen := bundle.Generator(*steps)
	ctx := context.Background()

	if *parallel {
		results, err := gen.GenerateAll(ctx, text, temperatures, *randSeed, nil)
		if err != nil {
			essentials.Die(err)
		}
		for _, res := range results {
			fmt.Println("----- diversity:", res.Temperature)
			fmt.Println(res.Text)
		}
		return
	}

	for i, temp := range temperatures {
		fmt.Println("----- diversity:", temp)
		fmt.Printf("----- Generating with seed: \"%s\"\n", text)
		fmt.Print(text)
		src := rand.NewPCG(*randSeed, uint64(i))
		_, err := gen.Generate(ctx, text, temp, src, func(r rune) error {
			_, err := os.Stdout.WriteString(string(r))
			return err
		})
		fmt.Println()
		if err != nil {
			essentials.Die(err)
		}
	}
}

func helpCommand() {
	if len(os.Args) != 3 {
		dieUsage()
	}
	m := modelForName(os.Args[2])
	fmt.Fprintf(os.Stderr, "Usage for training:\n\n")
	trainFlags(m, &trainOptions{}).PrintDefaults()
}

func dieUsage() {
	fmt.Fprintln(os.Stderr, "Usage: charlie train <model> <bundle-file> <corpus> [args]\n"+
		"       charlie gen <bundle-file> [args]\n"+
		"       charlie help <model>\n\n"+
		"Available models:")
	for _, m := range charlie.Models() {
		fmt.Fprintln(os.Stderr, " "+m.Name())
	}
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

func modelForName(name string) charlie.Model {
	m, err := charlie.ModelForName(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		dieUsage()
	}
	return m
}

func parseFloats(s string) ([]float64, error) {
	var res []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		res = append(res, x)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("no values in %q", s)
	}
	return res, nil
}
