package providers

import (
	"context"
	"errors"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
)

// ErrUnsupportedClass is returned when a provider is asked for a data class
// it does not serve. The resolver treats it as a hard failure for chain
// accounting but it normally indicates a misconfigured chain.
var ErrUnsupportedClass = errors.New("data class not supported by provider")

// Provider fetches one datum for a (subject, data class) pair. Fetch returns
// the datum, the provider's confidence in it [0,1], and an error on failure.
// Implementations must honor ctx cancellation; the resolver applies the
// per-provider timeout through it.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, subject string, class repository.DataClass) (models.Datum, float64, error)
}
