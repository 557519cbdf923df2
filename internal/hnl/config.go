package hnl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the user-facing scan configuration, loaded from YAML.
// Zero values are filled with defaults by Build.
type RunConfig struct {
	// DataDir holds the generator trajectory CSVs
	// (HNL_<mass>GeV_<flavour>_<regime>[_fromTau].csv).
	DataDir string `yaml:"data_dir"`
	// LibraryDir is the root of the decay-template library.
	LibraryDir string `yaml:"library_dir"`
	// CacheDir holds acceptance sidecars; defaults to DataDir.
	CacheDir  string `yaml:"cache_dir"`
	OutputCSV string `yaml:"output_csv"`

	Benchmarks []string `yaml:"benchmarks"` // "100", "010", "001"

	LumiFb         float64 `yaml:"lumi_fb"`
	Dirac          bool    `yaml:"dirac"`
	RecoEfficiency float64 `yaml:"reco_efficiency"`

	MinSeparationM   float64 `yaml:"min_separation_m"`
	MaxSeparationM   float64 `yaml:"max_separation_m"`
	SeparationPolicy string  `yaml:"separation_policy"`
	PMinGeV          float64 `yaml:"p_min_gev"`
	DecaySeed        int64   `yaml:"decay_seed"`

	Eps2Min       float64 `yaml:"eps2_min"`
	Eps2Max       float64 `yaml:"eps2_max"`
	ScanPoints    int     `yaml:"scan_points"`
	PerPointModel bool    `yaml:"per_point_model"`

	Workers           int  `yaml:"workers"`
	AllowMassMismatch bool `yaml:"allow_mass_mismatch"`
}

// LoadRunConfig reads a YAML config file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Build fills defaults and validates, returning the derived per-run
// settings.
func (c *RunConfig) Build() (RunSettings, error) {
	var s RunSettings
	if c.DataDir == "" {
		return s, fmt.Errorf("config: data_dir is required")
	}
	if c.LibraryDir == "" {
		return s, fmt.Errorf("config: library_dir is required")
	}
	if c.MinSeparationM <= 0 {
		return s, fmt.Errorf("config: min_separation_m must be > 0, got %g", c.MinSeparationM)
	}
	if c.MaxSeparationM != 0 && c.MaxSeparationM <= c.MinSeparationM {
		return s, fmt.Errorf("config: max_separation_m must be > min_separation_m (got %g <= %g)",
			c.MaxSeparationM, c.MinSeparationM)
	}

	s.Benchmarks = c.Benchmarks
	if len(s.Benchmarks) == 0 {
		s.Benchmarks = []string{"100", "010", "001"}
	}
	s.Flavours = make([]Flavour, len(s.Benchmarks))
	for i, b := range s.Benchmarks {
		f, err := ParseBenchmark(b)
		if err != nil {
			return s, fmt.Errorf("config: %w", err)
		}
		s.Flavours[i] = f
	}

	s.Yield = DefaultYieldParams()
	if c.LumiFb > 0 {
		s.Yield.LumiFb = c.LumiFb
	}
	s.Yield.Dirac = c.Dirac
	if c.RecoEfficiency > 0 {
		s.Yield.RecoEfficiency = c.RecoEfficiency
	}

	s.Selection = DefaultDecaySelection(c.MinSeparationM)
	s.Selection.MaxSeparation = c.MaxSeparationM
	if c.PMinGeV > 0 {
		s.Selection.PMin = c.PMinGeV
	}
	if c.DecaySeed != 0 {
		s.Selection.Seed = c.DecaySeed
	}
	if c.SeparationPolicy != "" {
		p, err := ParseSeparationPolicy(c.SeparationPolicy)
		if err != nil {
			return s, fmt.Errorf("config: %w", err)
		}
		s.Selection.Policy = p
	}

	s.Scan = DefaultScanOptions()
	if c.Eps2Min > 0 {
		s.Scan.Eps2Min = c.Eps2Min
	}
	if c.Eps2Max > 0 {
		s.Scan.Eps2Max = c.Eps2Max
	}
	if c.ScanPoints > 0 {
		s.Scan.Points = c.ScanPoints
	}
	s.Scan.PerPointModel = c.PerPointModel
	if s.Scan.Eps2Max <= s.Scan.Eps2Min {
		return s, fmt.Errorf("config: eps2_max must be > eps2_min (got %g <= %g)", s.Scan.Eps2Max, s.Scan.Eps2Min)
	}

	s.Workers = c.Workers
	if s.Workers < 1 {
		s.Workers = 4
	}
	return s, nil
}

// RunSettings is the validated, defaulted form of RunConfig.
type RunSettings struct {
	Benchmarks []string
	Flavours   []Flavour
	Yield      YieldParams
	Selection  DecaySelection
	Scan       ScanOptions
	Workers    int
}
