package services

import (
	"context"
	"fmt"
	"time"

	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// DuplicateDetectorService suprime o reprocessamento de requisições idênticas
// dentro de uma janela. A atomicidade do set-if-absent do store é o que
// sustenta a garantia: um read-then-write aqui deixaria duas requisições
// idênticas concorrentes passarem juntas.
type DuplicateDetectorService struct {
	storage ports.Storage
	window  time.Duration
}

func NewDuplicateDetectorService(storage ports.Storage, window time.Duration) (*DuplicateDetectorService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("duplicate window must be positive, got %s", window)
	}
	return &DuplicateDetectorService{storage: storage, window: window}, nil
}

// RecordIfNew registra o fingerprint e informa se ele era inédito na janela.
// false significa que uma requisição equivalente já foi vista.
func (s *DuplicateDetectorService) RecordIfNew(ctx context.Context, fingerprint string) (bool, error) {
	wasSet, err := s.storage.SetIfAbsent(ctx, "dedup:"+fingerprint, s.window)
	if err != nil {
		return false, fmt.Errorf("dedup record: %w", err)
	}
	return wasSet, nil
}
