package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewLabel returns a unique debug label for a GPU resource, e.g. "depth-texture-1f0c...".
func NewLabel(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}
