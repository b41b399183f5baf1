package domain

import "errors"

// Error taxonomy shared by all pipeline stages. Components wrap these with
// context; callers match them with errors.Is.
var (
	// ErrInvalidInput reports a malformed argument at a component boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState reports a missing index, an empty chunk list or an unloaded model.
	ErrInvalidState = errors.New("invalid state")
	// ErrInconsistentState reports an index and chunk list that do not correspond.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrNotFound reports persisted state or documents that cannot be read.
	ErrNotFound = errors.New("not found")
	// ErrCorruptData reports persisted state that cannot be parsed.
	ErrCorruptData = errors.New("corrupt data")
)
