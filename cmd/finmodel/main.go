package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rgehrsitz/finmodel/internal/config"
	"github.com/rgehrsitz/finmodel/internal/domain"
	"github.com/rgehrsitz/finmodel/internal/forecast"
	"github.com/rgehrsitz/finmodel/internal/kpi"
	"github.com/rgehrsitz/finmodel/internal/scenario"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

var rootCmd = &cobra.Command{
	Use:   "finmodel",
	Short: "Financial forecasting and valuation CLI",
	Long:  "Forecasts company line items from declarative rules, derives KPIs, and compares valuation scenarios",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode, _ := cmd.Flags().GetBool("debug"); debugMode {
			logger = logger.Level(zerolog.DebugLevel)
		}
	},
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stdout, "finmodel %s (commit %s, built %s)\n", version, commit, date)
			if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
				fmt.Fprintln(os.Stdout, bi.Main.Path)
			}
		},
	}
}

// buildModel loads the model file and assembles a forecast model over
// the base company.
func buildModel(inputFile string) (*config.Model, *forecast.ForecastModel, error) {
	parser := config.NewInputParser()
	model, err := parser.LoadFromFile(inputFile)
	if err != nil {
		return nil, nil, err
	}

	fm, err := forecast.NewForecastModel(model.Company, model.Assumptions, model.Periods)
	if err != nil {
		return nil, nil, err
	}
	fm.SetLogger(logger)
	for _, rule := range model.Rules {
		if err := fm.AddForecastRule(rule); err != nil {
			return nil, nil, err
		}
	}
	for _, def := range model.KPIs {
		if err := fm.AddKPI(def.Name, def.Formula); err != nil {
			return nil, nil, err
		}
	}
	return model, fm, nil
}

var forecastCmd = &cobra.Command{
	Use:   "forecast [model-file]",
	Short: "Run the forecast and print item projections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, fm, err := buildModel(args[0])
		if err != nil {
			return err
		}
		if err := fm.Run(context.Background()); err != nil {
			return err
		}

		result := scenario.Result{
			Label:      "Base",
			Forecasted: make(map[string]map[domain.Period]decimal.Decimal, len(model.Rules)),
			KPIs:       fm.KPIResults(),
		}
		for _, rule := range model.Rules {
			item, err := model.Company.FindItem(rule.Target)
			if err != nil {
				return err
			}
			result.Forecasted[rule.Target] = item.Forecasted
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "table":
			fmt.Printf("FORECAST: %s (%d periods)\n\n", model.Company.Name, model.Periods)
			fmt.Print(scenario.FormatSeries(result))
		case "json":
			jf := &scenario.JSONFormatter{}
			out, err := jf.Format(&scenario.ComparisonSet{Company: model.Company.Name, Results: []scenario.Result{result}})
			if err != nil {
				return err
			}
			fmt.Print(out)
		case "csv":
			cf := &scenario.CSVFormatter{}
			out, err := cf.Format(&scenario.ComparisonSet{Company: model.Company.Name, Results: []scenario.Result{result}})
			if err != nil {
				return err
			}
			fmt.Print(out)
		default:
			return fmt.Errorf("unknown format %q (want table, csv, or json)", format)
		}

		if snapshot, _ := cmd.Flags().GetString("save-snapshot"); snapshot != "" {
			if err := model.Company.SaveSnapshot(snapshot); err != nil {
				return err
			}
			logger.Info().Str("path", snapshot).Msg("saved company snapshot")
		}
		return nil
	},
}

var kpiCmd = &cobra.Command{
	Use:   "kpi [model-file]",
	Short: "Compute KPI series over historical and forecasted periods",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, fm, err := buildModel(args[0])
		if err != nil {
			return err
		}
		if err := fm.Run(context.Background()); err != nil {
			return err
		}

		names := fm.KPIs().Names()
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			names = []string{name}
		}
		for _, name := range names {
			series, err := fm.KPIs().CalculateKPI(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", name)
			periods := make([]domain.Period, 0, len(series))
			for p := range series {
				periods = append(periods, p)
			}
			domain.SortPeriods(periods)
			for _, p := range periods {
				fmt.Printf("  %-8s %s\n", string(p), formatKPIValue(series[p]))
			}
		}
		return nil
	},
}

func formatKPIValue(v kpi.Value) string {
	if v.Undefined {
		return "n/a"
	}
	return v.Amount.StringFixed(4)
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [model-file]",
	Short: "Run every named scenario and compare valuations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := config.NewInputParser()
		model, err := parser.LoadFromFile(args[0])
		if err != nil {
			return err
		}
		if len(model.Scenarios) == 0 {
			return fmt.Errorf("model file defines no scenarios")
		}
		if model.SharesOutstanding.IsZero() {
			return fmt.Errorf("scenarios need a valuation section with shares_outstanding and market_price")
		}

		sm, err := scenario.NewScenarioModel(
			model.Company, model.Assumptions, model.Periods,
			model.Rules, model.KPIs, model.Valuation,
			model.SharesOutstanding, model.MarketPrice,
		)
		if err != nil {
			return err
		}
		sm.SetLogger(logger)

		compSet, err := sm.RunScenarios(context.Background(), model.Scenarios)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "table":
			tf := &scenario.TableFormatter{}
			fmt.Print(tf.Format(compSet))
		case "json":
			jf := &scenario.JSONFormatter{}
			out, err := jf.Format(compSet)
			if err != nil {
				return err
			}
			fmt.Print(out)
		case "csv":
			cf := &scenario.CSVFormatter{}
			out, err := cf.Format(compSet)
			if err != nil {
				return err
			}
			fmt.Print(out)
		default:
			return fmt.Errorf("unknown format %q (want table, csv, or json)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	forecastCmd.Flags().String("format", "table", "Output format: table, csv, or json")
	forecastCmd.Flags().String("save-snapshot", "", "Write the forecasted company to a JSON snapshot file")
	kpiCmd.Flags().String("name", "", "Compute a single KPI by name")
	scenariosCmd.Flags().String("format", "table", "Output format: table, csv, or json")

	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
