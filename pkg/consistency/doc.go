// Package consistency decides how a noise field is derived so that noise
// looks comparable across output resolutions.
//
// A [Policy] names exactly one [Strategy]:
//
//   - [DownscaleFromMax]: noise is added once at the largest requested size
//     and every smaller output is a resample of that noisy image. The
//     derivation itself lives in the degrade package; here the policy only
//     draws at the target.
//   - [FixedGrain]: planes are drawn at BaseSize on the long side (aspect
//     preserved) and expanded to the target by nearest-neighbor duplication.
//   - [MatrixRepeat]: planes are drawn at ceil(target/k) with
//     k = max(1, floor(long side/BaseSize)), each cell repeated k×k times,
//     then cropped to the target.
//   - [PowerLaw]: an independent draw at every size, with the intensity
//     parameter scaled by (long side/BaseSize)^Alpha.
//
// Policies are validated eagerly. Requesting two different strategies for
// one run is a CONFIGURATION_CONFLICT error raised by [Select] before any
// array is allocated.
package consistency
