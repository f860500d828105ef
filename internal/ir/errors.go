package ir

import "errors"

var (
	ErrNilIR          = errors.New("ir is not initialized")
	ErrNilBlock       = errors.New("basic block is not initialized")
	ErrNilLabel       = errors.New("basic block label is empty")
	ErrNilAllocator   = errors.New("register allocator is not initialized")
	ErrBadInstruction = errors.New("malformed instruction")
	ErrUnknownBlock   = errors.New("unknown basic block")
)
