package weather

import "errors"

// ErrInvalidReading is returned for readings with unknown categories or implausible values.
var ErrInvalidReading = errors.New("invalid weather reading")
