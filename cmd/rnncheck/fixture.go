package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/rnncheck/internal/fixture"
)

func fixtureCmd() *cli.Command {
	var (
		kind       string
		batch      int64
		steps      int64
		inputSize  int64
		hiddenSize int64
		projSize   int64
		seed       int64
		name       string
		suite      bool
		outPath    string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "kind",
			Usage:       "cell kind (lstm, lstm_proj, gru)",
			Value:       string(fixture.KindLSTM),
			Destination: &kind,
		},
		&cli.IntFlag{
			Name:        "batch",
			Aliases:     []string{"b"},
			Usage:       "batch size",
			Value:       stdBatch,
			Destination: &batch,
		},
		&cli.IntFlag{
			Name:        "steps",
			Aliases:     []string{"t"},
			Usage:       "sequence length",
			Value:       stdSteps,
			Destination: &steps,
		},
		&cli.IntFlag{
			Name:        "input-size",
			Aliases:     []string{"i"},
			Usage:       "input feature size",
			Value:       stdInput,
			Destination: &inputSize,
		},
		&cli.IntFlag{
			Name:        "hidden-size",
			Usage:       "hidden state size",
			Value:       stdHidden,
			Destination: &hiddenSize,
		},
		&cli.IntFlag{
			Name:        "proj-size",
			Usage:       "projection size (lstm_proj only)",
			Destination: &projSize,
		},
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "random seed for weights and inputs",
			Value:       stdSeed,
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "name",
			Usage:       "case name (defaults to the kind)",
			Destination: &name,
		},
		&cli.BoolFlag{
			Name:        "suite",
			Usage:       "emit the standard three-kind scenario instead of a single case",
			Destination: &suite,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output fixture path",
			Value:       "fixture.json",
			Destination: &outPath,
		},
	}, loggingFlags()...)

	return &cli.Command{
		Name:  "fixture",
		Usage: "Generate a parity fixture with empty expected tensors",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyFixtureConfig(cmd, LoadConfig(), &seed)
			log := buildLogger()

			var f fixture.File
			if suite {
				for _, spec := range []struct {
					kind fixture.Kind
					proj int
				}{
					{fixture.KindLSTM, 0},
					{fixture.KindLSTMProj, stdProj},
					{fixture.KindGRU, 0},
				} {
					c, err := fixture.Generate(string(spec.kind), spec.kind, stdBatch, stdSteps, stdInput, stdHidden, spec.proj, seed)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					f.Cases = append(f.Cases, c)
				}
			} else {
				if name == "" {
					name = kind
				}
				c, err := fixture.Generate(name, fixture.Kind(kind), int(batch), int(steps), int(inputSize), int(hiddenSize), int(projSize), seed)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				f.Cases = append(f.Cases, c)
			}

			if err := fixture.Save(outPath, &f); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("fixture written", "path", outPath, "cases", len(f.Cases), "seed", seed)
			log.Info("fill expected tensors with scripts/export_reference.py, then run verify")
			return nil
		},
	}
}
