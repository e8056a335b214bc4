package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenID returns a new opaque message id.
func GenID() string {
	return "m-" + uuid.NewString()
}

// GenBlobID returns a new id for an uploaded blob. Dashes are stripped so
// the id is safe to embed in a filename.
func GenBlobID() string {
	return "b" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
