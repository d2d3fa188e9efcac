// Package noise implements the stochastic perturbations applied to clean images.
//
// Each supported distribution is a [Model] with two halves:
//
//   - Draw samples the perturbation planes (a [Field] per independent random
//     component) for a given array shape. The planes do not depend on pixel
//     values, which is what lets a consistency strategy draw them at a small
//     base resolution and expand them before use.
//   - Perturb combines an image with planes of the image's own shape, clips
//     to [0, 255] and truncates to uint8.
//
// Poisson noise depends on the pixel values themselves, so its Draw returns
// no planes and Perturb samples directly.
//
// [Apply] is the one-shot form used when no consistency strategy is involved:
//
//	rng := rand.New(rand.NewPCG(seed, 0))
//	noisy, err := noise.Apply(img, noise.Gaussian, noise.Params{Std: 10}, rng)
package noise
