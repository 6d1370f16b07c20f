package engine

import "github.com/sdtmpl/sdtmpl/pkg/manifest"

// GenerationClient is the narrow seam a driver implements to actually talk
// to a Stable Diffusion backend. The engine never implements it itself
// (spec.md Non-goals: no HTTP client, no file-system image writing) — it
// only defines the shape a driver's client and recorder need to satisfy to
// round-trip through ResolvedRun.
type GenerationClient interface {
	// Generate submits one Variant and returns the bytes of the produced
	// image plus the actual seed used (which may differ from v.SeedHint
	// when SeedHint is seedpolicy.RandomSentinel).
	Generate(v Variant) (image []byte, actualSeed int64, err error)
}

// ImageWriter is the narrow seam a driver implements to persist generated
// image bytes; again, no implementation ships in this module.
type ImageWriter interface {
	Write(filename string, image []byte) error
}

// RunBatch drives every Variant in run through client and writer,
// recording each result into a manifest.Manifest keyed by a driver-chosen
// filename. It is a convenience orchestration helper, not a requirement —
// a driver is free to call run.Iter itself and skip this entirely.
func RunBatch(run *ResolvedRun, client GenerationClient, writer ImageWriter, filenameFor func(Variant) string, m *manifest.Manifest) error {
	variants, err := run.Iter()
	if err != nil {
		return err
	}
	for _, v := range variants {
		image, actualSeed, err := client.Generate(v)
		if err != nil {
			return err
		}
		filename := filenameFor(v)
		if err := writer.Write(filename, image); err != nil {
			return err
		}
		m.AddImage(manifest.ImageRecord{
			VariantIndex:      v.Index,
			Filename:          filename,
			ActualSeed:        actualSeed,
			Prompt:            v.Positive,
			Negative:          v.Negative,
			AppliedVariations: v.AppliedVariations,
		})
	}
	return nil
}
