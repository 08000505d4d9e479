package exchange

import "errors"

var errEmptyIdentity = errors.New("verifier returned no identity")
