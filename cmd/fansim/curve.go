package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/policy"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type curvePoint struct {
	Temperature float64   `yaml:"temperature"`
	Percentage  float64   `yaml:"percentage"`
	Speeds      []float64 `yaml:"speeds,flow"`
}

type curveReport struct {
	MaxRPMs []float64    `yaml:"max_rpms,flow"`
	Points  []curvePoint `yaml:"points"`
}

func newCurveCmd() *cobra.Command {
	var (
		from, to, step float64
		output         string
	)

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the fan curve for the configured fans.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			points, err := buildCurve(cfg.MaxRPMs, from, to, step)
			if err != nil {
				logError(err, "Failed to build fan curve")
				return err
			}

			report := curveReport{MaxRPMs: cfg.MaxRPMs, Points: points}
			switch output {
			case "yaml":
				return writeCurveYAML(cmd.OutOrStdout(), report)
			case "table":
				return writeCurveTable(cmd.OutOrStdout(), report)
			default:
				err := errors.New().WithData(errors.ErrInvalidArgument, "output must be table or yaml: "+output)
				logError(err, "Failed to print fan curve")
				return err
			}
		},
	}

	cmd.Flags().Float64Var(&from, "from", 20, "First temperature in °C")
	cmd.Flags().Float64Var(&to, "to", 80, "Last temperature in °C")
	cmd.Flags().Float64Var(&step, "step", 5, "Temperature step in °C")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, yaml)")

	return cmd
}

func buildCurve(maxRPMs []float64, from, to, step float64) ([]curvePoint, error) {
	errFactory := errors.New()

	for _, v := range []float64{from, to, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errFactory.WithData(errors.ErrInvalidArgument, "curve bounds must be finite")
		}
	}
	if step <= 0 || from > to {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, struct {
			From, To, Step float64
		}{from, to, step})
	}

	p := policy.New(len(maxRPMs))
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	points := make([]curvePoint, 0, n)
	for i := 0; i < n; i++ {
		t := from + float64(i)*step
		speeds, err := p.ComputeSpeeds([]float64{t}, maxRPMs)
		if err != nil {
			return nil, err
		}
		points = append(points, curvePoint{
			Temperature: t,
			Percentage:  policy.Percentage(t),
			Speeds:      speeds,
		})
	}

	return points, nil
}

func writeCurveYAML(w io.Writer, report curveReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return errors.New().Wrap(errors.ErrOperationFailed, err)
	}

	return enc.Close()
}

func writeCurveTable(w io.Writer, report curveReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(tw, "Temp (°C)\tDuty (%)\t")
	for i := range report.MaxRPMs {
		fmt.Fprintf(tw, "Fan%d (RPM)\t", i+1)
	}
	fmt.Fprintln(tw)

	for _, point := range report.Points {
		fmt.Fprintf(tw, "%s\t%s\t",
			strconv.FormatFloat(point.Temperature, 'f', -1, 64),
			strconv.FormatFloat(point.Percentage*100, 'f', 1, 64))
		for _, s := range point.Speeds {
			fmt.Fprintf(tw, "%s\t", strconv.FormatFloat(s, 'f', 0, 64))
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}
