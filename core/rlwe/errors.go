package rlwe

import "github.com/levelhe/levelhe/utils"

// Error kinds returned by the package, see [utils.ErrInvalidArgument].
var (
	ErrInvalidArgument = utils.ErrInvalidArgument
	ErrLogic           = utils.ErrLogic
	ErrRuntime         = utils.ErrRuntime
	ErrOutOfMemory     = utils.ErrOutOfMemory
)
