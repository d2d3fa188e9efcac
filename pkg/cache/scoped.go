package cache

// ScopedKeyer prefixes every key, separating namespaces that share one
// backend (for example two experiments writing to the same Redis).
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (DefaultKeyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SweepKey returns the prefixed sweep key.
func (k *ScopedKeyer) SweepKey(argv []string) string {
	return k.prefix + k.inner.SweepKey(argv)
}

// DegradeKey returns the prefixed degrade key.
func (k *ScopedKeyer) DegradeKey(imageHash string, opts DegradeKeyOpts) string {
	return k.prefix + k.inner.DegradeKey(imageHash, opts)
}
