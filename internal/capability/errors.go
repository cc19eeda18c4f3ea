package capability

import "errors"

var (
	ErrNameEmpty         = errors.New("capability name empty")
	ErrNilCapability     = errors.New("capability is nil")
	ErrPanic             = errors.New("capability panicked")
	ErrUnknownType       = errors.New("unknown capability type")
	ErrScriptEmpty       = errors.New("capability script empty")
	ErrInvalidArgName    = errors.New("invalid script argument name")
	ErrForcedFailure     = errors.New("capability failed")
	ErrLuaLoad           = errors.New("lua load error")
	ErrLuaExecution      = errors.New("lua execution error")
	ErrAleNotProcedure   = errors.New("not a procedure")
	ErrAleCompile        = errors.New("script compile error")
	ErrAleCall           = errors.New("error calling procedure")
	ErrSpecFileFormat    = errors.New("unknown capability file format")
	ErrDuplicateSpecName = errors.New("duplicate capability name")
)
