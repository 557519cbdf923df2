package hnl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DetectorConfig describes the fiducial volume: a tube of circular
// cross-section lofted along a horizontal centreline polyline at a fixed
// height above the interaction point. Coordinates are metres in the
// experiment frame, with the origin at the collision point and z vertical.
type DetectorConfig struct {
	// Centreline is the tube axis polyline in raw survey coordinates
	// (millimetres, survey frame). ShiftX/ShiftY re-centre it on the
	// interaction point and UnitScale converts to metres.
	Centreline [][2]Real
	ShiftX     Real
	ShiftY     Real
	UnitScale  Real

	// Height is the vertical position of the tube axis above the
	// interaction point, in metres.
	Height Real

	// Radius is the physical tube radius in metres; EnvelopeMargin is a
	// multiplicative envelope to absorb polygonization and alignment
	// uncertainty.
	Radius         Real
	EnvelopeMargin Real

	// Segments is the number of vertices per cross-section ring.
	Segments int
}

// survey polyline of the gallery axis, as measured (mm)
var galleryCentreline = [][2]Real{
	{-86.57954338701529, 0.1882163986665546},
	{-1731.590867740335, 3.764327973349282},
	{-3549.761278867689, 7.716872345365118},
	{-5887.408950317142, 12.798715109387558},
	{-8053.403266181902, -504.23173203003535},
	{-10046.991360867298, -1282.5065405198511},
	{-11783.350377373874, -2930.9057600491833},
	{-12913.652590171332, -4580.622494369192},
	{-13095.344153684957, -7536.749251839814},
	{-13099.610392054752, -9015.000846973791},
	{-13278.792403586143, -11101.567842600896},
	{-13372.39869252341, -13536.146959364076},
	{-13292.093029091975, -15710.234580371536},
	{-12779.140603923677, -17972.21925955668},
	{-11659.12755425337, -19887.69754879509},
	{-10105.714877251532, -21630.204967658145},
	{-7512.845769209047, -23201.0590309365},
	{-5262.530506741277, -23466.820585854904},
	{-2751.72374851779, -23472.278861416264},
	{-241.41890069074725, -23651.64908934632},
	{1749.6596420124115, -23742.93404270002},
	{3827.568683300815, -23747.45123626804},
	{6078.6368113632525, -23752.344862633392},
	{8502.613071001502, -23844.570897980426},
	{11446.568501358292, -23764.01427935077},
	{13438.399909656131, -23594.431304151418},
	{15777.051401898476, -23251.689242178036},
	{18289.614846509525, -22648.455684448927},
	{20889.761655300477, -21697.58643838109},
	{23143.841245741598, -20659.00835053422},
	{25486.006110759066, -19098.88262197991},
	{27742.09334278597, -17364.656724658227},
	{28871.391734790544, -16062.763895075637},
	{30781.662703665817, -14153.873179790575},
	{32518.021720172394, -12505.473960261239},
	{34513.49197884447, -11075.029330388788},
	{36636.57295581305, -10427.47081077351},
	{38759.40297758341, -9866.868267342572},
	{41357.416667189485, -9655.12481884172},
	{43694.93886103982, -9703.684649697909},
	{46379.03018363646, -9666.041369964427},
	{49409.43967978114, -9629.150955825604},
	{51660.88424064092, -9503.610617914434},
	{54258.0195870532, -9596.213086058811},
	{57028.564975437745, -9602.236010816167},
	{59539.87364405768, -9433.782334008818},
	{62050.42944708294, -9526.196585754526},
}

// DefaultDetectorConfig returns the nominal drainage-gallery geometry:
// axis at z = 22 m, 1.4 m radius with a 10% envelope, 32-segment rings.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Centreline:     galleryCentreline,
		ShiftX:         11908.8279764855,
		ShiftY:         -13591.106147774964,
		UnitScale:      1.0 / 1000.0,
		Height:         22.0,
		Radius:         1.4,
		EnvelopeMargin: 1.1,
		Segments:       32,
	}
}

func (c DetectorConfig) validate() error {
	if len(c.Centreline) < 2 {
		return fmt.Errorf("detector config: need at least two centreline points, got %d", len(c.Centreline))
	}
	if c.Radius <= 0 {
		return fmt.Errorf("detector config: radius must be > 0, got %g", c.Radius)
	}
	if c.EnvelopeMargin <= 0 {
		return fmt.Errorf("detector config: envelope margin must be > 0, got %g", c.EnvelopeMargin)
	}
	if c.Segments < 3 {
		return fmt.Errorf("detector config: need at least 3 ring segments, got %d", c.Segments)
	}
	if c.UnitScale == 0 {
		return fmt.Errorf("detector config: unit scale must be non-zero")
	}
	return nil
}

// path returns the centreline in metres in the experiment frame.
func (c DetectorConfig) path() []Vec3 {
	pts := make([]Vec3, len(c.Centreline))
	for i, p := range c.Centreline {
		pts[i] = Vec3{
			X: (p[0] - c.ShiftX) * c.UnitScale,
			Y: (p[1] - c.ShiftY) * c.UnitScale,
			Z: c.Height,
		}
	}
	return pts
}

// Tag returns a stable content hash of the geometry definition, used to
// key acceptance caches: any geometry change invalidates old sidecars.
func (c DetectorConfig) Tag() string {
	h := sha256.New()
	fmt.Fprintf(h, "shift=%.9f,%.9f scale=%.12f z=%.6f r=%.6f m=%.6f seg=%d n=%d",
		c.ShiftX, c.ShiftY, c.UnitScale, c.Height, c.Radius, c.EnvelopeMargin, c.Segments, len(c.Centreline))
	for _, p := range c.Centreline {
		fmt.Fprintf(h, ";%.9f,%.9f", p[0], p[1])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
