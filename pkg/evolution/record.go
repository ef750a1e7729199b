package evolution

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// RecordSchemaVersion is the layout version written with every record
const RecordSchemaVersion = "1.0"

// BestSolutionRecord is the single persisted result of the last completed run
type BestSolutionRecord struct {
	SchemaVersion   string            `json:"schema_version" yaml:"schema_version"`
	RunID           string            `json:"run_id" yaml:"run_id"`
	DecodedStrategy DecodedStrategy   `json:"decoded_strategy" yaml:"decoded_strategy"`
	Genes           []float64         `json:"genes" yaml:"genes"`
	Fitness         float64           `json:"fitness" yaml:"fitness"`
	FoundGeneration int               `json:"found_generation" yaml:"found_generation"`
	Generations     int               `json:"generations" yaml:"generations"`
	PopSize         int               `json:"pop_size" yaml:"pop_size"`
	GenerationStats []GenerationStats `json:"generation_stats" yaml:"generation_stats"`
	CompletedAt     time.Time         `json:"completed_at" yaml:"completed_at"`
}

// NewRecord builds the persisted record from a finished run
func NewRecord(runID string, result *Result) *BestSolutionRecord {
	return &BestSolutionRecord{
		SchemaVersion:   RecordSchemaVersion,
		RunID:           runID,
		DecodedStrategy: Decode(result.Best.Genes),
		Genes:           result.Best.Genes.Slice(),
		Fitness:         result.Best.Fitness,
		FoundGeneration: result.BestGeneration,
		Generations:     result.Generations,
		PopSize:         result.PopSize,
		GenerationStats: result.Stats,
		CompletedAt:     time.Now().UTC(),
	}
}

// CheckCompatibility verifies a loaded record can be read by this version.
// Records without a version predate versioning and are accepted as 1.0.
func (r *BestSolutionRecord) CheckCompatibility() error {
	if r == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if r.SchemaVersion == "" {
		r.SchemaVersion = RecordSchemaVersion
		return nil
	}

	current, err := semver.NewVersion(r.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid record schema version %q: %w", r.SchemaVersion, err)
	}
	supported := semver.MustParse(RecordSchemaVersion)

	if current.Major() != supported.Major() {
		return fmt.Errorf("record schema version %s is incompatible with %s", r.SchemaVersion, RecordSchemaVersion)
	}
	if current.GreaterThan(supported) {
		return fmt.Errorf("record schema version %s is newer than supported version %s", r.SchemaVersion, RecordSchemaVersion)
	}
	return nil
}
