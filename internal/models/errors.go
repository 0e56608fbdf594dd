package models

import "errors"

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("record not found")
