package content

import "errors"

// ErrCreateContent is returned when content cannot be stored.
var ErrCreateContent = errors.New("failed to create content")

// ErrNothingToUpdate is returned for a PATCH without fields.
var ErrNothingToUpdate = errors.New("no fields to update")
