package main

// rna-pf computes equilibrium partition functions for RNA sequences.
//
// Example 1: fold every record of a FASTA file and report pair probabilities.
//
//    rna-pf -in seqs.fa -probs -json-output out.json
//
// Example 2: fold a gapped FASTA alignment comparatively, circular backbone.
//
//    rna-pf -in ali.fa -ali -circ
//
// Defaults can be kept in a YAML file and shared across runs; explicit flags
// always win over the config file.

import (
	"flag"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/ribolab/rna/encoding/fasta"
	"github.com/ribolab/rna/pf"
	"gopkg.in/yaml.v3"
)

type config struct {
	Temperature *float64 `yaml:"temperature"`
	Turn        *int     `yaml:"turn"`
	MaxLoop     *int     `yaml:"maxloop"`
	PfScale     *float64 `yaml:"pfscale"`
	Circular    *bool    `yaml:"circular"`
	Cutoff      *float64 `yaml:"cutoff"`
}

type mainFlags struct {
	inPath     string
	configPath string
	outPath    string
	alignment  bool
	probs      bool
	cutoff     float64
}

// result is one JSON output record.
type result struct {
	Name       string        `json:"name"`
	Length     int           `json:"length"`
	NSeq       int           `json:"nseq,omitempty"`
	FreeEnergy float64       `json:"free_energy"`
	Pairs      []pf.PairProb `json:"pairs,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func readConfig(path string, opts *pf.Opts, cutoff *float64) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	c := config{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}
	if c.Temperature != nil {
		opts.Temperature = *c.Temperature
	}
	if c.Turn != nil {
		opts.Turn = *c.Turn
	}
	if c.MaxLoop != nil {
		opts.MaxLoop = *c.MaxLoop
	}
	if c.PfScale != nil {
		opts.PfScale = *c.PfScale
	}
	if c.Circular != nil {
		opts.Circular = *c.Circular
	}
	if c.Cutoff != nil {
		*cutoff = *c.Cutoff
	}
}

func foldSingle(rec fasta.Record, opts pf.Opts, probs bool, cutoff float64) result {
	res := result{Name: rec.Name, Length: len(rec.Seq)}
	fc, err := pf.New(rec.Seq, opts)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if opts.PfScale == 1.0 && len(rec.Seq) > 80 {
		// A crude ensemble-energy guess keeps long folds away from underflow.
		fc, err = pf.New(rec.Seq, withScaleGuess(opts, len(rec.Seq)))
		if err != nil {
			res.Error = err.Error()
			return res
		}
	}
	e, err := fc.Pf()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.FreeEnergy = e
	if probs && !opts.Circular {
		if err := fc.PairProbs(); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Pairs = fc.PairProbList(cutoff)
	}
	return res
}

func withScaleGuess(opts pf.Opts, n int) pf.Opts {
	kT := (opts.Temperature + 273.15) * 1.98717
	opts.PfScale = pf.PfScaleFromEnergy(-0.3*float64(n), kT, n)
	return opts
}

func foldAlignment(recs []fasta.Record, opts pf.Opts) result {
	rows := make([]string, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Seq
	}
	res := result{Name: recs[0].Name, Length: len(rows[0]), NSeq: len(rows)}
	fc, err := pf.NewAlignment(rows, opts)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	e, err := fc.Pf()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.FreeEnergy = e
	return res
}

func writeResults(path string, results []result) {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("create %s: %v", path, err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Fatalf("close %s: %v", path, err)
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatalf("encode results: %v", err)
	}
}

func main() {
	flags := mainFlags{}
	opts := pf.DefaultOpts
	flag.StringVar(&flags.inPath, "in", "", "Input FASTA file. Reads stdin if empty.")
	flag.StringVar(&flags.configPath, "config", "", "Optional YAML file with default fold settings.")
	flag.StringVar(&flags.outPath, "json-output", "", "JSON output file. Writes stdout if empty.")
	flag.BoolVar(&flags.alignment, "ali", false, "Treat the input as one gapped alignment and fold it comparatively.")
	flag.BoolVar(&flags.probs, "probs", false, "Also compute base-pair probabilities (linear single-sequence folds only).")
	flag.Float64Var(&flags.cutoff, "cutoff", 1e-5, "Smallest pair probability to report.")
	flag.Float64Var(&opts.Temperature, "temp", pf.DefaultOpts.Temperature, "Fold temperature in Celsius.")
	flag.BoolVar(&opts.Circular, "circ", false, "Fold circular RNAs.")
	flag.Float64Var(&opts.PfScale, "pf-scale", pf.DefaultOpts.PfScale, "Partition function rescaling factor. 1.0 folds unscaled.")
	flag.Parse()

	if flags.configPath != "" {
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fileOpts := opts
		cutoff := flags.cutoff
		readConfig(flags.configPath, &fileOpts, &cutoff)
		if !set["temp"] {
			opts.Temperature = fileOpts.Temperature
		}
		if !set["circ"] {
			opts.Circular = fileOpts.Circular
		}
		if !set["pf-scale"] {
			opts.PfScale = fileOpts.PfScale
		}
		opts.Turn = fileOpts.Turn
		opts.MaxLoop = fileOpts.MaxLoop
		if !set["cutoff"] {
			flags.cutoff = cutoff
		}
	}

	var in io.Reader = os.Stdin
	if flags.inPath != "" {
		f, err := os.Open(flags.inPath)
		if err != nil {
			log.Fatalf("open %s: %v", flags.inPath, err)
		}
		defer f.Close() // nolint: errcheck
		in = f
	}

	if flags.alignment {
		recs, err := fasta.ReadAlignment(in)
		if err != nil {
			log.Fatalf("read alignment: %v", err)
		}
		writeResults(flags.outPath, []result{foldAlignment(recs, opts)})
		return
	}

	recs, err := fasta.Read(in)
	if err != nil {
		log.Fatalf("read sequences: %v", err)
	}
	results := make([]result, len(recs))
	err = traverse.Each(len(recs), func(i int) error {
		results[i] = foldSingle(recs[i], opts, flags.probs, flags.cutoff)
		return nil
	})
	if err != nil {
		log.Fatalf("fold: %v", err)
	}
	nErr := 0
	for _, r := range results {
		if r.Error != "" {
			nErr++
		}
	}
	if nErr > 0 {
		log.Error.Printf("%d of %d records failed", nErr, len(results))
	}
	writeResults(flags.outPath, results)
}
