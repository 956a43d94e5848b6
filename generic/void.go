package generic

// Void is a zero-size placeholder for "no value", e.g. set membership or
// error-only Results.
type Void = struct{}

// NewVoid returns the Void value.
func NewVoid() Void {
	return Void{}
}
