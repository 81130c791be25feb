package container

import "errors"

var (
	// ErrFrozen is returned by every mutating call made after Compile.
	ErrFrozen = errors.New("container: cannot modify a compiled container")

	ErrParameterNotFound = errors.New("container: parameter not found")
	ErrServiceNotFound   = errors.New("container: service not found")
	ErrExtensionNotFound = errors.New("container: no extension registered")

	// ErrNoFactory means a definition resolved to a class nobody bound with BindClass.
	ErrNoFactory = errors.New("container: no factory bound for class")

	ErrCircularReference = errors.New("container: circular reference")
	ErrProviderNotFound  = errors.New("container: no provider registered")
)
