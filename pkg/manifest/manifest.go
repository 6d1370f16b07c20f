// Package manifest implements spec.md §4.N: building the reproducible
// snapshot written once per run, and appending the per-image records the
// driver reports as generation proceeds. The manifest is self-contained:
// replaying a run never requires the original template files again.
package manifest

import (
	"encoding/json"
	"io"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/pkg/enumerate"
)

// ResolvedTemplate carries the final bodies with placeholders still
// visible, for human readability, per spec.md §4.N.
type ResolvedTemplate struct {
	Prompt   string `json:"prompt"`
	Negative string `json:"negative_prompt"`
}

// GenerationParams mirrors the run's generation settings plus the two
// derived counts a reader needs to judge run size without recomputing
// them. SelectionSeed is this implementation's addition (not named in the
// original distillation): the run seed used to derive the enumerate/random
// selection RNG stream, recorded so a `mode=random` run's combination
// sampling is independently reproducible from the manifest alone, the same
// way base_seed already makes per-image seeding reproducible.
type GenerationParams struct {
	Mode               docmodel.GenerationMode `json:"mode"`
	SeedMode           docmodel.SeedMode       `json:"seed_mode"`
	BaseSeed           int64                   `json:"base_seed"`
	SelectionSeed      int64                   `json:"selection_seed"`
	NumImages          int                     `json:"num_images"`
	TotalCombinations  uint64                  `json:"total_combinations"`
}

// Snapshot is the run-level, written-once portion of manifest.json.
type Snapshot struct {
	Version          string           `json:"version"`
	Timestamp        string           `json:"timestamp"`
	RuntimeInfo      any              `json:"runtime_info,omitempty"`
	ResolvedTemplate ResolvedTemplate `json:"resolved_template"`
	GenerationParams GenerationParams `json:"generation_params"`
	APIParams        map[string]any   `json:"api_params"`
	Variations       map[string][]string `json:"variations"`
}

// ImageRecord is one driver-appended entry, added after each generation
// call completes.
type ImageRecord struct {
	VariantIndex      int               `json:"variant_index"`
	Filename          string            `json:"filename"`
	ActualSeed        int64             `json:"actual_seed"`
	Prompt            string            `json:"prompt"`
	Negative          string            `json:"negative_prompt"`
	AppliedVariations map[string]string `json:"applied_variations"`
}

// Manifest is the full document written to manifest.json.
type Manifest struct {
	Snapshot Snapshot      `json:"snapshot"`
	Images   []ImageRecord `json:"images"`
}

// BuildSnapshot assembles a Snapshot from a flattened document, its
// resolved bodies and placeholders, and the driver-supplied runtime_info blob. placeholders
// is every placeholder Discover found in the document's bodies, fixed and
// varying alike: spec.md §4.N requires the full selected set (after
// selectors) for each placeholder that appears in the body, not just the
// ones that loop. now is the ISO-8601 run timestamp, supplied by the caller
// since this package never calls time.Now() itself (stages perform no I/O
// or non-determinism beyond what the caller threads in, per spec.md §5).
func BuildSnapshot(flat *docmodel.FlatDoc, positiveBody, negativeBody string, placeholders []enumerate.Placeholder, total uint64, numImages int, now string, runtimeInfo any) Snapshot {
	variations := make(map[string][]string, len(placeholders))
	for _, p := range placeholders {
		keys := make([]string, len(p.Values))
		for i, v := range p.Values {
			keys[i] = v.Key
		}
		variations[p.Name] = keys
	}

	return Snapshot{
		Version:          docmodel.SchemaVersion,
		Timestamp:        now,
		RuntimeInfo:      runtimeInfo,
		ResolvedTemplate: ResolvedTemplate{Prompt: positiveBody, Negative: negativeBody},
		GenerationParams: GenerationParams{
			Mode:              flat.Generation.Mode,
			SeedMode:          flat.Generation.SeedMode,
			BaseSeed:          flat.Generation.Seed,
			SelectionSeed:     flat.Generation.Seed,
			NumImages:         numImages,
			TotalCombinations: total,
		},
		APIParams:  flat.Parameters,
		Variations: variations,
	}
}

// New returns an empty Manifest wrapping snapshot, ready to accumulate
// image records as the driver calls AddImage.
func New(snapshot Snapshot) *Manifest {
	return &Manifest{Snapshot: snapshot, Images: make([]ImageRecord, 0)}
}

// AddImage appends one per-image record, in call order.
func (m *Manifest) AddImage(rec ImageRecord) {
	m.Images = append(m.Images, rec)
}

// WriteJSON pretty-prints the manifest to w as UTF-8 JSON.
func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
