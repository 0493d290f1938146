// Package services implementa a lógica central de admissão: rate limit,
// limite de concorrência e supressão de duplicatas, orquestrados pelo gate.
package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/8848man/gemini-api-server/internal/core/domain"
	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// AdmissionGateService é o único ponto de decisão consumido pela camada HTTP.
//
// A ordem dos checks é fixa — duplicata, rate limit, concorrência — do mais
// barato e menos mutante para o mais caro. Política documentada: o incremento
// de rate limit NÃO é desfeito quando o check de concorrência nega em
// seguida; uma requisição barrada por concorrência ainda consumiu orçamento
// da janela.
type AdmissionGateService struct {
	duplicates  *DuplicateDetectorService
	rate        *RateLimiterService
	concurrency *ConcurrencyLimiterService

	// failOpen decide o comportamento quando o store está fora do ar:
	// true admite tudo (com log), false nega tudo. Uma política só, aplicada
	// aqui, para que os três checks nunca degradem de formas diferentes.
	failOpen bool
}

var _ ports.Gate = (*AdmissionGateService)(nil)

func NewAdmissionGateService(duplicates *DuplicateDetectorService, rate *RateLimiterService, concurrency *ConcurrencyLimiterService, failOpen bool) (*AdmissionGateService, error) {
	if duplicates == nil || rate == nil || concurrency == nil {
		return nil, fmt.Errorf("all three admission checks are required")
	}
	return &AdmissionGateService{
		duplicates:  duplicates,
		rate:        rate,
		concurrency: concurrency,
		failOpen:    failOpen,
	}, nil
}

// Admit avalia a requisição e retorna a decisão agregada.
//
// Quando a decisão é VerdictAllowed o chamador é obrigado a invocar
// decision.Release exatamente uma vez ao encerrar a requisição, em qualquer
// caminho de saída. payload nil indica requisição sem corpo, que pula o
// check de duplicata.
func (g *AdmissionGateService) Admit(ctx context.Context, identity, route string, payload []byte) (domain.Decision, error) {
	if strings.TrimSpace(identity) == "" {
		return domain.Decision{}, domain.ErrInvalidIdentity
	}

	if payload != nil {
		fingerprint := Fingerprint(identity, route, payload)
		isNew, err := g.duplicates.RecordIfNew(ctx, fingerprint)
		if err != nil {
			return g.storeFailure(identity, err)
		}
		if !isNew {
			return domain.Decision{Verdict: domain.VerdictDeniedDuplicate}, nil
		}
	}

	rateResult, err := g.rate.CheckAndConsume(ctx, identity)
	if err != nil {
		return g.storeFailure(identity, err)
	}
	if !rateResult.Allowed {
		return domain.Decision{
			Verdict:           domain.VerdictDeniedRateLimited,
			RetryAfterSeconds: rateResult.RetryAfterSeconds,
			Limit:             rateResult.Limit,
		}, nil
	}

	release, acquired, err := g.concurrency.Acquire(ctx, identity)
	if err != nil {
		return g.storeFailure(identity, err)
	}
	if !acquired {
		return domain.Decision{
			Verdict: domain.VerdictDeniedConcurrency,
			Limit:   g.concurrency.Max(),
		}, nil
	}

	return domain.Decision{
		Verdict:   domain.VerdictAllowed,
		Limit:     rateResult.Limit,
		Remaining: rateResult.Remaining,
		Release:   release,
	}, nil
}

// storeFailure recolhe qualquer erro de store para a taxonomia do domínio e
// aplica a política configurada. O erro nunca vaza além do gate.
func (g *AdmissionGateService) storeFailure(identity string, cause error) (domain.Decision, error) {
	err := fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, cause)

	if g.failOpen {
		log.Printf("admission store unavailable, failing open for %s: %v", identity, err)
		return domain.Decision{Verdict: domain.VerdictAllowed, Release: func() {}}, nil
	}

	log.Printf("admission store unavailable, failing closed for %s: %v", identity, err)
	return domain.Decision{Verdict: domain.VerdictDeniedStoreError}, nil
}
