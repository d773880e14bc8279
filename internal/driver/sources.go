package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/karthik11135/tardis/internal/models"
)

// JSONLSource replays observables from a JSONL stream, one iteration per
// line. It is the replay path for traces captured from a transport kernel.
type JSONLSource struct {
	dec    *json.Decoder
	closer io.Closer
	line   int
}

// NewJSONLSource reads observables from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	return &JSONLSource{dec: json.NewDecoder(r)}
}

// OpenJSONL opens a JSONL observables file for replay.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening observables file: %w", err)
	}
	return &JSONLSource{dec: json.NewDecoder(f), closer: f}, nil
}

// Next returns the next iteration's observables, or io.EOF at end of
// stream.
func (s *JSONLSource) Next(ctx context.Context) (models.IterationObservables, error) {
	if err := ctx.Err(); err != nil {
		return models.IterationObservables{}, err
	}

	var obs models.IterationObservables
	if err := s.dec.Decode(&obs); err != nil {
		if err == io.EOF {
			return models.IterationObservables{}, io.EOF
		}
		return models.IterationObservables{}, fmt.Errorf("line %d: %w", s.line+1, err)
	}
	s.line++

	if len(obs.TRad) != len(obs.W) {
		return models.IterationObservables{}, fmt.Errorf("line %d: t_rad has %d zones, w has %d", s.line, len(obs.TRad), len(obs.W))
	}
	return obs, nil
}

// Close closes the underlying file, if any.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SyntheticConfig parameterizes a SyntheticSource.
type SyntheticConfig struct {
	// Zones is the number of spatial zones.
	Zones int

	// StartTRad and TargetTRad bound the per-zone temperature relaxation;
	// zones are spread linearly between inner and outer values.
	StartTRad  float64
	TargetTRad float64

	// StartW and TargetW bound the dilution factor relaxation.
	StartW  float64
	TargetW float64

	// StartTInner and TargetTInner bound the boundary temperature.
	StartTInner  float64
	TargetTInner float64

	// RequestedLuminosity is the driving luminosity target.
	RequestedLuminosity float64

	// Rate is the per-iteration relaxation fraction in (0, 1]: each value
	// moves that fraction of its remaining distance to the target.
	Rate float64
}

// DefaultSyntheticConfig returns a configuration that relaxes to its fixed
// point within a typical iteration budget.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Zones:               20,
		StartTRad:           13000,
		TargetTRad:          10000,
		StartW:              0.9,
		TargetW:             0.5,
		StartTInner:         12000,
		TargetTInner:        10700,
		RequestedLuminosity: 1.0e43,
		Rate:                0.5,
	}
}

// SyntheticSource generates a deterministic relaxation toward a fixed
// point. Useful for exercising the full loop without a transport kernel.
type SyntheticSource struct {
	cfg    SyntheticConfig
	tRad   []float64
	w      []float64
	tInner float64
}

// NewSyntheticSource builds a source from cfg. Zone i starts at the inner
// value scaled outward so the profile is not flat.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	s := &SyntheticSource{
		cfg:    cfg,
		tRad:   make([]float64, cfg.Zones),
		w:      make([]float64, cfg.Zones),
		tInner: cfg.StartTInner,
	}
	for i := 0; i < cfg.Zones; i++ {
		// Outer zones run cooler and more dilute.
		grad := 1 - 0.3*float64(i)/math.Max(1, float64(cfg.Zones-1))
		s.tRad[i] = cfg.StartTRad * grad
		s.w[i] = cfg.StartW * grad
	}
	return s
}

// Next advances the relaxation one step and returns the new snapshot.
// The source never exhausts; the driver's iteration cap bounds the run.
func (s *SyntheticSource) Next(ctx context.Context) (models.IterationObservables, error) {
	if err := ctx.Err(); err != nil {
		return models.IterationObservables{}, err
	}

	for i := range s.tRad {
		grad := 1 - 0.3*float64(i)/math.Max(1, float64(len(s.tRad)-1))
		s.tRad[i] += s.cfg.Rate * (s.cfg.TargetTRad*grad - s.tRad[i])
		s.w[i] += s.cfg.Rate * (s.cfg.TargetW*grad - s.w[i])
	}
	s.tInner += s.cfg.Rate * (s.cfg.TargetTInner - s.tInner)

	// Emitted luminosity tracks the boundary temperature's approach to
	// its target, so the residual shrinks as the state relaxes.
	ratio := s.tInner / s.cfg.TargetTInner
	emitted := s.cfg.RequestedLuminosity * math.Pow(ratio, 4)

	obs := models.IterationObservables{
		TRad:                append([]float64(nil), s.tRad...),
		W:                   append([]float64(nil), s.w...),
		TInner:              s.tInner,
		EmittedLuminosity:   emitted,
		AbsorbedLuminosity:  0.2 * emitted,
		RequestedLuminosity: s.cfg.RequestedLuminosity,
	}
	return obs, nil
}
