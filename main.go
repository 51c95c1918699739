package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/spf13/afero"

	"speech-dataset-recorder/audio"
	"speech-dataset-recorder/config"
	"speech-dataset-recorder/data_set"
	"speech-dataset-recorder/session"
	"speech-dataset-recorder/speech_to_text"
	"speech-dataset-recorder/voice_detection"
)

var errUsage = errors.New("usage")

type options struct {
	dataSetPath string
	configPath  string
	modelPath   string
}

func parseArgs(args []string, output io.Writer) (*options, error) {
	name := filepath.Base(args[0])

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)

	opts := &options{}
	flags.StringVar(&opts.modelPath, "m", "", "whisper model file, enables transcript suggestions")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")

	flags.Usage = func() {
		fmt.Fprintf(output, "Usage: %s <data set directory>\n", name)
		flags.PrintDefaults()
	}

	err := flags.Parse(args[1:])
	if err != nil {
		// flag has already printed usage
		return nil, errUsage
	}

	if flags.NArg() != 1 || flags.Arg(0) == "-h" || flags.Arg(0) == "--help" {
		flags.Usage()

		return nil, errUsage
	}

	opts.dataSetPath = flags.Arg(0)

	return opts, nil
}

func run(opts *options) error {
	fileSys := afero.NewOsFs()

	cfg := config.Default()

	if opts.configPath != "" {
		var err error

		cfg, err = config.Load(fileSys, opts.configPath)
		if err != nil {
			return err
		}
	}

	if opts.modelPath != "" {
		cfg.Model = opts.modelPath
	}

	dataSet, err := data_set.New(&data_set.Config{
		FileSys: fileSys,
		Path:    opts.dataSetPath,
	})
	if err != nil {
		return fmt.Errorf("error with data_set.New: %w", err)
	}

	var sttEngine speech_to_text.Interface

	if cfg.Model != "" {
		// Load model
		model, err := whisper.New(cfg.Model)
		if err != nil {
			return fmt.Errorf("error loading model: %w", err)
		}

		defer model.Close()

		sttEngine, err = speech_to_text.New(&speech_to_text.Config{
			Model: model,
		})
		if err != nil {
			return fmt.Errorf("error with speech_to_text.New: %w", err)
		}
	}

	audioSession, err := audio.New(&audio.Config{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		PlayChunk:       cfg.Audio.PlayChunk,
	})
	if err != nil {
		return fmt.Errorf("error with audio.New: %w", err)
	}

	defer audioSession.Close()

	s, err := session.New(&session.Config{
		Audio:     audioSession,
		DataSet:   dataSet,
		In:        os.Stdin,
		Out:       os.Stdout,
		VAD:       voice_detection.New(cfg.Audio.FramesPerBuffer),
		STTEngine: sttEngine,
	})
	if err != nil {
		return fmt.Errorf("error with session.New: %w", err)
	}

	return s.Run()
}

func main() {
	opts, err := parseArgs(os.Args, os.Stdout)
	if err != nil {
		os.Exit(1)
	}

	err = run(opts)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}
