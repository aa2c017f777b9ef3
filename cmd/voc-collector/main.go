// Command voc-collector gathers labelled VOC samples and trains the
// nearest-centroid smoke classifier from them.
//
//	voc-collector collect -label cigarette -voc 450 -duration 30s -out cigarette.csv
//	voc-collector train -out model.json normal.csv cigarette.csv herbal.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "collect":
		err = collect(os.Args[2:])
	case "train":
		err = train(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "voc-collector: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: voc-collector collect|train [flags]")
}

type collectOptions struct {
	label    string
	out      string
	duration time.Duration
	period   time.Duration
	voc      uint
	seed     int64
}

func collect(args []string) error {
	var opts collectOptions
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.StringVar(&opts.label, "label", "", "class label: normal, cigarette, herbal or other")
	fs.StringVar(&opts.out, "out", "voc_log.csv", "CSV output path")
	fs.DurationVar(&opts.duration, "duration", 30*time.Second, "collection time")
	fs.DurationVar(&opts.period, "period", sensor.DefaultPeriod, "sample period")
	fs.UintVar(&opts.voc, "voc", 100, "simulated VOC baseline")
	fs.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "simulation seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := trigger.ParseClassLabel(opts.label); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelRun := context.WithTimeout(ctx, opts.duration)
	defer cancelRun()

	n, err := runCollection(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d %q samples to %s\n", n, opts.label, opts.out)
	return nil
}

func runCollection(ctx context.Context, opts collectOptions) (int, error) {
	env := sensor.NewSimulatedBME690(opts.seed)
	env.Set(sensor.Environment{Temperature: 25, Humidity: 50, Pressure: 1013.25, VOC: uint32(opts.voc)})
	capacity := int(opts.duration/opts.period) + 1
	sampler := sensor.NewSampler(env, sensor.NewSimulatedBMI270(opts.seed), sensor.SamplerConfig{
		Period:      opts.period,
		LogCapacity: capacity,
	}, logger.NewLogger(), nil)

	if err := sampler.StartLogging(opts.label); err != nil {
		return 0, err
	}
	sampler.Run(ctx)
	sampler.StopLogging()
	return sampler.ExportLogFile(opts.out)
}

func train(args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	out := fs.String("out", "voc_model.json", "model output path")
	name := fs.String("name", "voc-centroids", "model name")
	version := fs.String("version", time.Now().UTC().Format("20060102"), "model version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("train needs at least one CSV file")
	}

	samples, err := readSamples(fs.Args())
	if err != nil {
		return err
	}
	model, err := trigger.TrainCentroids(*name, *version, samples)
	if err != nil {
		return err
	}
	if err := trigger.SaveCentroidModel(*out, model); err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Model %s %s trained on %d samples\n", model.Name, model.Version, len(samples))
	fmt.Println(strings.Repeat("=", 60))
	for _, c := range model.Centroids {
		fmt.Printf("  %-16s VOC=%7.1f T=%5.1f H=%5.1f (n=%d)\n", c.Class, c.VOC, c.Temperature, c.Humidity, c.Samples)
	}
	fmt.Printf("Saved to %s\n", *out)
	return nil
}

func readSamples(paths []string) ([]sensor.VOCSample, error) {
	var all []sensor.VOCSample
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		samples, err := sensor.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, samples...)
	}
	return all, nil
}
