package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leoredi/hnlimits/internal/hnl"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hnlscan",
	Short: "HNL exclusion-sensitivity scanner",
	Long: `hnlscan computes the expected number of heavy-neutral-lepton decays
inside the detector volume for pre-generated trajectory batches, and
extracts the coupling range excluded at 95% CL for each mass point.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the full coupling scan over every discovered mass point",
	RunE:  runScan,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Isotropic solid-angle sweep of the detector (diagnostic)",
	RunE:  runProbe,
}

var xsecCmd = &cobra.Command{
	Use:   "xsec",
	Short: "Print the per-parent production cross-section registry",
	RunE:  runXsec,
}

var (
	probeDecayLength float64
	probeAzSamples   int
	probeElSamples   int
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hnlscan.yaml", "path to run configuration")

	probeCmd.Flags().Float64Var(&probeDecayLength, "decay-length", 50, "boosted decay length in metres")
	probeCmd.Flags().IntVar(&probeAzSamples, "azimuth-samples", 180, "azimuth grid points")
	probeCmd.Flags().IntVar(&probeElSamples, "elevation-samples", 90, "elevation grid points")

	rootCmd.AddCommand(scanCmd, probeCmd, xsecCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := hnl.LoadRunConfig(configPath)
	if err != nil {
		return err
	}
	settings, err := cfg.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &hnl.Runner{
		DataDir:  cfg.DataDir,
		Library:  &hnl.Library{Root: cfg.LibraryDir, AllowMassMismatch: cfg.AllowMassMismatch, Log: logger},
		Cache:    &hnl.AcceptanceCache{Dir: cfg.CacheDir, Log: logger},
		Model:    hnl.AnalyticModel{},
		Geometry: hnl.DefaultDetectorConfig(),
		Settings: settings,
		Log:      logger,
	}
	results, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	out := cfg.OutputCSV
	if out == "" {
		out = "hnl_exclusion.csv"
	}
	if err := hnl.WriteResults(out, results); err != nil {
		return err
	}
	logger.Info("scan complete", zap.Int("mass_points", len(results)), zap.String("output", out))
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	mesh, err := hnl.BuildDetectorMesh(hnl.DefaultDetectorConfig())
	if err != nil {
		return err
	}
	res := hnl.SolidAngleProbe(mesh, hnl.Vec3{}, probeDecayLength, probeAzSamples, probeElSamples)
	fmt.Printf("rays:                 %d\n", res.Rays)
	fmt.Printf("hits:                 %d\n", res.Hits)
	fmt.Printf("solid-angle fraction: %.6e\n", res.HitFraction)
	fmt.Printf("mean decay fraction:  %.6e (hitting directions, lambda=%g m)\n", res.MeanDecayFraction, probeDecayLength)
	fmt.Printf("total decay fraction: %.6e (full sphere)\n", res.TotalDecayFraction)
	return nil
}

func runXsec(cmd *cobra.Command, args []string) error {
	parents := []struct {
		pdg  int
		name string
	}{
		{321, "K+-"},
		{130, "K_L"},
		{421, "D0"},
		{411, "D+"},
		{431, "Ds+"},
		{511, "B0"},
		{521, "B+"},
		{531, "Bs0"},
		{541, "Bc+"},
		{4122, "Lambda_c+"},
		{5122, "Lambda_b0"},
		{15, "tau"},
		{24, "W+-"},
		{23, "Z"},
	}
	fmt.Printf("%-12s %6s %15s\n", "parent", "pdg", "sigma (pb)")
	for _, p := range parents {
		sigma, _ := hnl.ParentSigmaPb(p.pdg)
		fmt.Printf("%-12s %6d %15.4e\n", p.name, p.pdg, sigma)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
