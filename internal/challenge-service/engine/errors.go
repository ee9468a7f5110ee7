package engine

import "errors"

// Erros esperados, retornados como resultado tipado (não são falhas de infraestrutura).
// Qualquer outro erro indica falha do storage e é seguro para retry: nada foi aplicado.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidWinner       = errors.New("invalid winner")
	ErrAlreadySubmitted    = errors.New("already submitted")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRequest      = errors.New("invalid request")
)

// IsExpected indica se o erro pertence à taxonomia de negócio.
func IsExpected(err error) bool {
	for _, target := range []error{
		ErrInsufficientBalance, ErrNotFound, ErrInvalidState, ErrForbidden,
		ErrInvalidWinner, ErrAlreadySubmitted, ErrInvalidAmount, ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
