// Package domain concentra entidades e estruturas centrais do controle de admissão.
package domain

// Verdict identifica o resultado da avaliação de admissão de uma requisição.
type Verdict int

const (
	VerdictAllowed Verdict = iota
	VerdictDeniedDuplicate
	VerdictDeniedRateLimited
	VerdictDeniedConcurrency
	VerdictDeniedStoreError
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllowed:
		return "allowed"
	case VerdictDeniedDuplicate:
		return "denied_duplicate"
	case VerdictDeniedRateLimited:
		return "denied_rate_limited"
	case VerdictDeniedConcurrency:
		return "denied_concurrency"
	case VerdictDeniedStoreError:
		return "denied_store_error"
	default:
		return "unknown"
	}
}

// ReleaseFunc devolve a vaga de concorrência adquirida na admissão.
// Deve ser chamada exatamente uma vez ao final da requisição; chamadas
// repetidas são no-op.
type ReleaseFunc func()

// Decision é o veredito agregado do gate para uma requisição.
//
// Limit e Remaining refletem o mecanismo que decidiu: para VerdictAllowed e
// VerdictDeniedRateLimited são o orçamento da janela de rate limit; para
// VerdictDeniedConcurrency, Limit é o teto de requisições simultâneas.
type Decision struct {
	Verdict           Verdict
	RetryAfterSeconds int
	Limit             int
	Remaining         int

	// Release é não-nil apenas quando Verdict == VerdictAllowed.
	Release ReleaseFunc
}

// Allowed indica se a requisição pode seguir para o backend.
func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllowed
}
