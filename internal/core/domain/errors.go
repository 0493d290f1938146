package domain

import "errors"

var (
	// ErrInvalidIdentity indica identidade vazia ou malformada; é erro de
	// programação do chamador e nunca toca o store.
	ErrInvalidIdentity = errors.New("client identity is required")

	// ErrStoreUnavailable indica falha de comunicação com o store compartilhado.
	ErrStoreUnavailable = errors.New("shared state store unavailable")
)

func IsInvalidIdentityError(err error) bool {
	return errors.Is(err, ErrInvalidIdentity)
}

func IsStoreUnavailableError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
