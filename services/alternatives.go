package services

import (
	"context"
	"fmt"

	"bulk-order-service/models"
)

// CandidateSource supplies the data the alternatives lookup needs from the
// catalog. Satisfied by CatalogClient.
type CandidateSource interface {
	GetAttributes(ctx context.Context, sku string) (*models.ProductAttributes, error)
	SearchCandidates(ctx context.Context, sku string) ([]models.ProductAttributes, error)
}

// AlternativesService bridges the catalog's candidate pool and the local
// similarity engine into the processor's AlternativesAPI.
type AlternativesService struct {
	catalog CandidateSource
	engine  *SimilarityEngine
}

func NewAlternativesService(catalog CandidateSource, engine *SimilarityEngine) *AlternativesService {
	return &AlternativesService{catalog: catalog, engine: engine}
}

// FindAlternatives fetches the target product and its candidate pool, then
// scores and ranks locally.
func (s *AlternativesService) FindAlternatives(ctx context.Context, sku string, maxSuggestions int, minSimilarity float64) ([]models.AlternativeSuggestion, error) {
	original, err := s.catalog.GetAttributes(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", sku, err)
	}

	candidates, err := s.catalog.SearchCandidates(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", sku, err)
	}

	return s.engine.FindAlternatives(*original, candidates, maxSuggestions, minSimilarity), nil
}
