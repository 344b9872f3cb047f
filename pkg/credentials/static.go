package credentials

// Static returns a fixed Value forever; used for directly-supplied
// access/secret keys and for anonymous access (empty keys, SignatureAnonymous).
type Static struct {
	Value
}

func (s *Static) Retrieve() (Value, error) { return s.Value, nil }
func (s *Static) IsExpired() bool          { return false }

// NewAnonymous returns credentials that never sign a request; used when the
// client is constructed with no provider at all, matching the "anonymous
// mode" the base client falls back to.
func NewAnonymous() *Credentials {
	return New(&Static{Value: Value{SignerType: SignatureAnonymous}})
}
