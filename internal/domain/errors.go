package domain

import "errors"

// Sentinel errors shared across services, repositories and handlers. Services
// wrap these with context via fmt.Errorf and %w; handlers map them to HTTP
// status codes with errors.Is.
var (
	// ErrValidation marks malformed or out-of-policy input.
	ErrValidation = errors.New("datos de entrada inválidos")

	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password, deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("credenciales inválidas")

	// ErrInactiveUser rejects authentication for deactivated accounts.
	ErrInactiveUser = errors.New("cuenta desactivada")

	// ErrNotFound covers missing resources and resources owned by another
	// user, deliberately indistinguishable to the caller.
	ErrNotFound = errors.New("recurso no encontrado")

	// ErrConflict marks a uniqueness violation (duplicate username, email,
	// or active credential for a provider).
	ErrConflict = errors.New("el recurso ya existe")

	// ErrInvalidState rejects a lifecycle transition out of a terminal
	// query state, or an export of a query that never completed.
	ErrInvalidState = errors.New("estado de consulta inválido para la operación")

	// ErrNoData means a completed query has no stored result to export.
	ErrNoData = errors.New("la consulta no tiene datos almacenados")

	// ErrUnsupportedFormat rejects an unknown export format.
	ErrUnsupportedFormat = errors.New("formato de exportación no soportado")
)
