package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for turns and synthesized tool
// call ids.
func NewID() string { return uuid.NewString() }
