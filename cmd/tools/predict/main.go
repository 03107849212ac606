// cmd/tools/predict/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"delivery-estimator/internal/app"
	"delivery-estimator/internal/common/config"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"
	"delivery-estimator/internal/report"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimates delivery time and courier demand for one order",
	Long:  `predict loads the configured model registry and runs a single order through the delivery-time and courier-demand models, printing the same labelled metrics the API returns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if p := viper.GetString("registry"); p != "" {
			cfg.Models.RegistrySource = "file"
			cfg.Models.RegistryPath = p
		}

		var log logger.Logger = logger.NewNoOpLogger()
		if viper.GetBool("verbose") {
			log = logger.NewStructured(cfg.Logging.Level, "console", "predict")
		}

		return runPredict(cmd.Context(), cfg, log, predictOptions{
			Query:        queryFromFlags(),
			Model:        viper.GetString("model"),
			Language:     features.ParseLanguage(viper.GetString("lang")),
			JSON:         viper.GetBool("json"),
			Distribution: viper.GetBool("distribution"),
			Seed:         viper.GetInt64("seed"),
		}, cmd.OutOrStdout())
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml with environment overlays)")

	rootCmd.Flags().String("store-category", "Fast Food", "Store category (English or Spanish label)")
	rootCmd.Flags().String("day", "Monday", "Order day (English or Spanish name)")
	rootCmd.Flags().Int("hour", 12, "Order hour (0-23)")
	rootCmd.Flags().Int("onshift", 10, "Total on-shift couriers")
	rootCmd.Flags().Int("busy", 4, "Total busy couriers")
	rootCmd.Flags().Int("outstanding", 20, "Total outstanding orders")
	rootCmd.Flags().String("lang", "en", "Display language (en or es)")
	rootCmd.Flags().String("model", "", "Registered model to run (default runs both configured models)")
	rootCmd.Flags().String("registry", "", "Registry file overriding the configured source")
	rootCmd.Flags().Bool("json", false, "Print the raw prediction results as JSON")
	rootCmd.Flags().Bool("distribution", false, "Print a simulated delivery-time distribution")
	rootCmd.Flags().Int64("seed", 42, "Random seed for the simulated distribution")
	rootCmd.Flags().Bool("verbose", false, "Log catalog activity to stderr")

	viper.BindPFlags(rootCmd.Flags())
}

func initConfig() {
	viper.SetEnvPrefix("PREDICT")
	viper.AutomaticEnv()
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func queryFromFlags() models.OrderQuery {
	return models.OrderQuery{
		StoreCategory:          viper.GetString("store-category"),
		OrderDay:               viper.GetString("day"),
		OrderHour:              viper.GetInt("hour"),
		TotalOnshiftCouriers:   viper.GetInt("onshift"),
		TotalBusyCouriers:      viper.GetInt("busy"),
		TotalOutstandingOrders: viper.GetInt("outstanding"),
		Language:               viper.GetString("lang"),
	}
}

type predictOptions struct {
	Query        models.OrderQuery
	Model        string
	Language     features.Language
	JSON         bool
	Distribution bool
	Seed         int64
}

func runPredict(ctx context.Context, cfg *config.Config, log logger.Logger, opts predictOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	names := []string{cfg.Models.DeliveryTimeModel, cfg.Models.CourierDemandModel}
	if opts.Model != "" {
		names = []string{opts.Model}
	}

	var results []*models.PredictionResult
	for _, name := range names {
		res, err := a.Estimator.Estimate(ctx, name, opts.Query)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		results = append(results, res)
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, res := range results {
		fmt.Fprintf(tw, "# %s (%s)\n", res.Model, res.ModelVersion)
		for _, m := range report.Metrics(res, opts.Language) {
			fmt.Fprintf(tw, "%s\t%s\n", m.Label, m.Value)
		}
		if opts.Distribution && res.Kind == models.KindDeliveryTime {
			d := report.SimulateDistribution(float64(res.Value), report.DefaultStdDev, report.DefaultSamples, opts.Seed)
			for _, b := range d.Buckets {
				fmt.Fprintf(tw, "  %s-%s\t%d\n", report.FormatDecimal(b.From), report.FormatDecimal(b.To), b.Count)
			}
		}
	}
	return tw.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
