package service

import (
	"errors"
	"time"
)

// ErrValidation marks request payloads that fail cross-field rules the
// validator tags cannot express. The handler maps it to a 400 alongside
// validator.ValidationErrors.
var ErrValidation = errors.New("validation failed")

type nowFunc func() time.Time

// timeNow is stubbed in tests to pin the clock.
var timeNow = time.Now
