package noise

import (
	"strings"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Kind names a noise distribution.
type Kind string

// Supported noise kinds.
const (
	Gaussian   Kind = "gaussian"
	Uniform    Kind = "uniform"
	SaltPepper Kind = "salt_pepper"
	Speckle    Kind = "speckle"
	Poisson    Kind = "poisson"
	Rician     Kind = "rician"
	Mixed      Kind = "mixed"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{Gaussian, Uniform, SaltPepper, Speckle, Poisson, Rician, Mixed}

// FallbackKind is used when an unrecognized name is accepted leniently.
const FallbackKind = Gaussian

// ParseKind converts a name into a Kind. Matching is case-insensitive and
// accepts "salt-pepper" for salt_pepper.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidNoiseKind,
		"unknown noise kind %q (must be one of: %s)", s, kindList())
}

// ResolveKind parses s. When strict is false an unknown name resolves to
// FallbackKind and fellBack is true; the caller must report the fallback.
func ResolveKind(s string, strict bool) (k Kind, fellBack bool, err error) {
	k, err = ParseKind(s)
	if err == nil {
		return k, false, nil
	}
	if strict {
		return "", false, err
	}
	return FallbackKind, true, nil
}

// Additive reports whether the kind adds a pixel-independent perturbation.
func (k Kind) Additive() bool {
	return k == Gaussian || k == Uniform
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
