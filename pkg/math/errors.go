package math

import "errors"

// Arithmetic errors. They are fatal only to the call that produced them.
var (
	ErrDegenerateVector = errors.New("degenerate vector: magnitude below epsilon")
	ErrSingularMatrix   = errors.New("singular matrix: determinant below epsilon")
)

const (
	// Epsilon is the magnitude below which a vector cannot be normalized.
	Epsilon float32 = 1e-6

	// SingularEpsilon is the determinant magnitude below which a matrix has no inverse.
	SingularEpsilon float32 = 1e-9
)
