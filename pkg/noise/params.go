package noise

import (
	"fmt"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// DefaultMixedAmount is the salt-and-pepper fraction used by ParamsFor(Mixed, ...).
const DefaultMixedAmount = 0.005

// Params are the distribution parameters for one invocation. Only the fields
// relevant to the chosen kind are read.
type Params struct {
	Mean   float64 `json:"mean,omitempty" toml:"mean"`     // gaussian
	Std    float64 `json:"std,omitempty" toml:"std"`       // gaussian, rician, gaussian part of mixed
	Low    float64 `json:"low,omitempty" toml:"low"`       // uniform
	High   float64 `json:"high,omitempty" toml:"high"`     // uniform
	Amount float64 `json:"amount,omitempty" toml:"amount"` // salt_pepper, salt-pepper part of mixed
	Var    float64 `json:"var,omitempty" toml:"var"`       // speckle: std of the multiplicative term
}

// ParamsFor maps a single intensity knob onto the kind's primary parameter:
// std for gaussian and rician, ±intensity for uniform, var for speckle, the
// fraction for salt_pepper, and the gaussian std for mixed (with
// DefaultMixedAmount salt-and-pepper). Poisson has no parameter.
func ParamsFor(kind Kind, intensity float64) Params {
	switch kind {
	case Gaussian, Rician:
		return Params{Std: intensity}
	case Uniform:
		return Params{Low: -intensity, High: intensity}
	case Speckle:
		return Params{Var: intensity}
	case SaltPepper:
		return Params{Amount: intensity}
	case Mixed:
		return Params{Std: intensity, Amount: DefaultMixedAmount}
	}
	return Params{}
}

// Validate checks the parameters the kind reads.
func (p Params) Validate(kind Kind) error {
	switch kind {
	case Gaussian, Rician:
		return errors.ValidateNonNegative("std", p.Std)
	case Uniform:
		if p.Low > p.High {
			return errors.New(errors.ErrCodeInvalidInput, "uniform low (%v) exceeds high (%v)", p.Low, p.High)
		}
		return nil
	case Speckle:
		return errors.ValidateNonNegative("var", p.Var)
	case SaltPepper:
		return errors.ValidateProbability("amount", p.Amount)
	case Mixed:
		if err := errors.ValidateNonNegative("std", p.Std); err != nil {
			return err
		}
		return errors.ValidateProbability("amount", p.Amount)
	case Poisson:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidNoiseKind, "unknown noise kind %q", kind)
}

// Scale multiplies the kind's intensity parameter by factor. Salt-and-pepper
// fractions and Poisson are not intensity-scaled and come back unchanged.
func (p Params) Scale(kind Kind, factor float64) Params {
	switch kind {
	case Gaussian, Rician, Mixed:
		p.Std *= factor
	case Uniform:
		p.Low *= factor
		p.High *= factor
	case Speckle:
		p.Var *= factor
	}
	return p
}

// Scalable reports whether Scale changes anything for kind.
func Scalable(kind Kind) bool {
	return kind != SaltPepper && kind != Poisson
}

// Intensity returns the name and value of the kind's primary parameter.
func (p Params) Intensity(kind Kind) (string, float64) {
	switch kind {
	case Gaussian, Rician, Mixed:
		return "std", p.Std
	case Uniform:
		return "high", p.High
	case Speckle:
		return "var", p.Var
	case SaltPepper:
		return "amount", p.Amount
	}
	return "", 0
}

// Label formats the effective parameter for display, e.g. "std=12.3".
func (p Params) Label(kind Kind) string {
	switch kind {
	case Gaussian, Rician:
		return fmt.Sprintf("std=%.1f", p.Std)
	case Mixed:
		return fmt.Sprintf("std=%.1f sp=%.3f", p.Std, p.Amount)
	case Uniform:
		return fmt.Sprintf("range=%.1f..%.1f", p.Low, p.High)
	case Speckle:
		return fmt.Sprintf("var=%.3f", p.Var)
	case SaltPepper:
		return fmt.Sprintf("amount=%.3f", p.Amount)
	}
	return string(kind)
}
