// Package raster holds the pixel grid every degradation stage operates on.
//
// An [Image] is a height × width × channel array of 8-bit sRGB intensities
// stored row-major in a flat slice. Its shape never changes after
// construction: resampling and smoothing return new images with the same
// channel count. Grayscale sources decode to one channel, everything else
// to three (alpha is dropped).
//
// # Resampling
//
// [Resize] supports four interpolation kinds. Nearest, bilinear and bicubic
// use the golang.org/x/image/draw kernels; Lanczos uses
// github.com/disintegration/imaging.
//
//	small, err := raster.Resize(img, raster.Square(128), raster.Bicubic)
//
// # Smoothing
//
// [Median] applies a square median filter (github.com/disintegration/gift),
// used to simulate sensor or reconstruction denoising after noise injection.
package raster
