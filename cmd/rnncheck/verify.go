package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/rnncheck/internal/fixture"
)

func verifyCmd() *cli.Command {
	var (
		fixturePath string
		caseName    string
		absTol      float64
		relTol      float64
		reportPath  string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "fixture",
			Aliases:     []string{"f"},
			Usage:       "path to a parity fixture .json",
			Destination: &fixturePath,
		},
		&cli.StringFlag{
			Name:        "case",
			Usage:       "only verify the named case",
			Destination: &caseName,
		},
		&cli.FloatFlag{
			Name:        "abs-tol",
			Usage:       "override absolute tolerance for all cases",
			Destination: &absTol,
		},
		&cli.FloatFlag{
			Name:        "rel-tol",
			Usage:       "override relative tolerance for all cases",
			Destination: &relTol,
		},
		&cli.StringFlag{
			Name:        "report",
			Aliases:     []string{"o"},
			Usage:       "write the JSON verification report to this path",
			Destination: &reportPath,
		},
	}, loggingFlags()...)

	return &cli.Command{
		Name:  "verify",
		Usage: "Run the kernels against a fixture's reference outputs",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyVerifyConfig(cmd, LoadConfig(), &absTol, &relTol)
			log := buildLogger()

			if fixturePath == "" {
				return cli.Exit("error: --fixture is required", 2)
			}
			f, err := fixture.Load(fixturePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			report := fixture.NewReport()
			log.Info("verifying fixture", "path", fixturePath, "cases", len(f.Cases), "run_id", report.RunID)

			matched := 0
			for i := range f.Cases {
				c := &f.Cases[i]
				if caseName != "" && c.Name != caseName {
					continue
				}
				matched++
				if !c.HasExpected() {
					return cli.Exit(fmt.Sprintf("error: case %q has no expected tensors; run scripts/export_reference.py first", c.Name), 1)
				}
				// Zero means "use the fixture's tolerance".
				if absTol > 0 {
					c.AbsTol = absTol
				}
				if relTol > 0 {
					c.RelTol = relTol
				}

				got, err := fixture.Run(c)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				res := report.Add(c, got)
				log.Info("case",
					"name", res.Name,
					"kind", string(res.Kind),
					"pass", res.Pass,
					"out_max_abs", res.Output.MaxAbs,
					"out_rmse", res.Output.RMSE,
					"hn_max_abs", res.HN.MaxAbs,
					"cn_max_abs", res.CN.MaxAbs,
				)
			}
			if matched == 0 {
				return cli.Exit(fmt.Sprintf("error: no case named %q in %s", caseName, fixturePath), 1)
			}

			if reportPath != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode report: %v", err), 1)
				}
				if err := os.WriteFile(reportPath, append(data, '\n'), 0o644); err != nil {
					return cli.Exit(fmt.Sprintf("error: write report: %v", err), 1)
				}
				log.Info("report written", "path", reportPath)
			}

			log.Info("summary: " + report.Summary())
			if !report.Passed() {
				return cli.Exit("verification failed", 1)
			}
			return nil
		},
	}
}
