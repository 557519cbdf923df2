package hnl

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Product is one decay daughter in the parent rest frame.
type Product struct {
	E    Real
	Px   Real
	Py   Real
	Pz   Real
	Mass Real
	PID  int
}

// Template is one pre-sampled rest-frame decay configuration.
type Template []Product

// TemplateSet is the parsed contents of one library file, shared
// read-only across trajectories.
type TemplateSet struct {
	Path     string
	Mass     Real // template mass, GeV
	Category string
	Events   []Template
}

// Pick draws one template uniformly.
func (s *TemplateSet) Pick(rng *rand.Rand) Template {
	return s.Events[rng.Intn(len(s.Events))]
}

// MaxTemplateMassDelta is the largest tolerated gap between a requested
// mass and the nearest library file, in GeV.
const MaxTemplateMassDelta = 0.5

// ErrMassMismatch is returned when the nearest template is further from
// the requested mass than MaxTemplateMassDelta.
var ErrMassMismatch = errors.New("decay template mass mismatch beyond tolerance")

type flavourLibraryConfig struct {
	Dir              string
	LowMassThreshold Real
	Priorities       []string
}

// Below the low-mass threshold only analytic two/three-body files carry
// valid kinematics; above it the hadronic samples take over in the
// listed priority order.
var flavourLibraries = map[Flavour]flavourLibraryConfig{
	FlavourElectron: {
		Dir:              "RHN_Ue_hadronic_decays_geant",
		LowMassThreshold: 0.42,
		Priorities:       []string{"inclDs", "inclDD", "inclD", "nocharm", "nocharmnoss", "lightfonly", "analytical2and3bodydecays"},
	},
	FlavourMuon: {
		Dir:              "RHN_Umu_hadronic_decays_geant",
		LowMassThreshold: 0.53,
		Priorities:       []string{"inclDs", "inclDD", "inclD", "nocharm", "nocharmnoss", "lightfonly", "analytical2and3bodydecays"},
	},
	FlavourTau: {
		Dir:              "RHN_Utau_hadronic_decays_geant",
		LowMassThreshold: 0.42,
		Priorities:       []string{"lightfonly", "lightfsonly", "lightfstau", "lightfstauK"},
	},
}

// Longer category names first so e.g. "lightfstauK" is not claimed by
// "lightfstau".
var templateCategories = []string{
	"lightfstauK",
	"lightfstau",
	"lightfsonly",
	"lightfonly",
	"inclDs",
	"inclDD",
	"inclD",
	"nocharmnoss",
	"nocharm",
	"analytical2and3bodydecays",
}

const analyticCategory = "analytical2and3bodydecays"

var templateMassRe = regexp.MustCompile(`_([0-9]+(?:\.[0-9]+)?)\.txt$`)

type templateFile struct {
	path     string
	mass     Real
	category string
}

// Library selects and parses decay-template files under Root, one
// subdirectory per flavour. Selection is nearest-available-mass within
// a flavour-specific category set; there is no interpolation between
// neighbouring masses.
type Library struct {
	Root string
	// AllowMassMismatch demotes the mass-tolerance failure to a warning,
	// for diagnostics only.
	AllowMassMismatch bool
	Log               *zap.Logger

	mu     sync.Mutex
	files  map[Flavour][]templateFile
	parsed map[string]*TemplateSet
}

func (l *Library) logger() *zap.Logger {
	if l.Log != nil {
		return l.Log
	}
	return zap.NewNop()
}

func (l *Library) list(f Flavour) ([]templateFile, error) {
	if l.files == nil {
		l.files = make(map[Flavour][]templateFile)
	}
	if files, ok := l.files[f]; ok {
		return files, nil
	}
	cfg, ok := flavourLibraries[f]
	if !ok {
		return nil, fmt.Errorf("unknown flavour %q for decay library", f)
	}
	dir := filepath.Join(l.Root, cfg.Dir)
	names, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	var files []templateFile
	for _, path := range names {
		m := templateMassRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		mass, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		files = append(files, templateFile{path: path, mass: mass, category: categoryOf(filepath.Base(path))})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no decay template files for flavour %q under %s", f, dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	l.files[f] = files
	return files, nil
}

func categoryOf(name string) string {
	for _, c := range templateCategories {
		if strings.Contains(name, c) {
			return c
		}
	}
	return "unknown"
}

func categoryRank(category string) int {
	for i, c := range templateCategories {
		if c == category {
			return i
		}
	}
	return len(templateCategories)
}

func nearestTemplate(files []templateFile, mass Real) (templateFile, bool) {
	if len(files) == 0 {
		return templateFile{}, false
	}
	best := files[0]
	for _, f := range files[1:] {
		db, df := math.Abs(best.mass-mass), math.Abs(f.mass-mass)
		switch {
		case df < db:
			best = f
		case df == db && categoryRank(f.category) < categoryRank(best.category):
			best = f
		}
	}
	return best, true
}

// Select locates the nearest-mass template set for (flavour, mass) and
// parses it. A nearest file more than MaxTemplateMassDelta away fails
// loudly rather than silently substituting wrong kinematics, unless
// AllowMassMismatch demotes that to a warning.
func (l *Library) Select(f Flavour, mass Real) (*TemplateSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.list(f)
	if err != nil {
		return nil, err
	}
	cfg := flavourLibraries[f]

	var pool []templateFile
	if mass <= cfg.LowMassThreshold {
		for _, tf := range files {
			if tf.category == analyticCategory {
				pool = append(pool, tf)
			}
		}
	} else {
		allowed := make(map[string]bool, len(cfg.Priorities))
		for _, c := range cfg.Priorities {
			if c != analyticCategory {
				allowed[c] = true
			}
		}
		for _, tf := range files {
			if allowed[tf.category] {
				pool = append(pool, tf)
			}
		}
	}
	chosen, ok := nearestTemplate(pool, mass)
	if !ok {
		chosen, _ = nearestTemplate(files, mass)
	}

	if delta := math.Abs(chosen.mass - mass); delta > MaxTemplateMassDelta {
		if !l.AllowMassMismatch {
			return nil, fmt.Errorf("flavour %s mass %.3f GeV: nearest template %.3f GeV (delta %.3f): %w",
				f, mass, chosen.mass, delta, ErrMassMismatch)
		}
		l.logger().Warn("using decay template beyond mass tolerance",
			zap.String("flavour", string(f)),
			zap.Float64("mass_gev", mass),
			zap.Float64("template_mass_gev", chosen.mass))
	}

	return l.parse(chosen)
}

func (l *Library) parse(tf templateFile) (*TemplateSet, error) {
	if l.parsed == nil {
		l.parsed = make(map[string]*TemplateSet)
	}
	if set, ok := l.parsed[tf.path]; ok {
		return set, nil
	}
	data, err := os.ReadFile(tf.path)
	if err != nil {
		return nil, fmt.Errorf("read decay template: %w", err)
	}
	events, malformed, err := parseTemplates(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tf.path, err)
	}
	if malformed > 0 {
		l.logger().Warn("skipped malformed decay template rows",
			zap.String("path", tf.path), zap.Int("rows", malformed))
	}
	set := &TemplateSet{Path: tf.path, Mass: tf.mass, Category: tf.category, Events: events}
	l.parsed[tf.path] = set
	return set, nil
}

// parseTemplates reads blank-line-separated event blocks. The first
// line of each block is a daughter-count header; remaining lines are
// comma-separated E,px,py,pz,mass,pid rows. "Format is" banner lines
// are ignored wherever they appear.
func parseTemplates(text string) ([]Template, int, error) {
	var (
		events    []Template
		block     []string
		malformed int
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		tpl, bad := parseTemplateBlock(block)
		malformed += bad
		if len(tpl) > 0 {
			events = append(events, tpl)
		}
		block = block[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "format is") {
			continue
		}
		block = append(block, line)
	}
	flush()
	if len(events) == 0 {
		return nil, malformed, errors.New("no decay events parsed")
	}
	return events, malformed, nil
}

func parseTemplateBlock(lines []string) (Template, int) {
	var (
		tpl Template
		bad int
	)
	for _, line := range lines[1:] {
		parts := strings.Split(line, ",")
		fields := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				fields = append(fields, p)
			}
		}
		if len(fields) < 6 {
			continue
		}
		vals := make([]Real, 5)
		ok := true
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		pid, pidOK := parsePIDToken(fields[5])
		if !ok || !pidOK {
			bad++
			continue
		}
		tpl = append(tpl, Product{E: vals[0], Px: vals[1], Py: vals[2], Pz: vals[3], Mass: vals[4], PID: pid})
	}
	return tpl, bad
}

// parsePIDToken accepts integer text and integral float text ("16",
// "16.0") but rejects non-integral values.
func parsePIDToken(tok string) (int, bool) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	n := int(math.Round(v))
	if math.Abs(v-Real(n)) > 1e-6 {
		return 0, false
	}
	return n, true
}
