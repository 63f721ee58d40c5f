package band

import "errors"

// Sentinel error kinds. Callers match them with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidSkill = errors.New("invalid skill")
)
