package reasoner

import (
	"context"
	"fmt"

	"vigil/pkg/platform/sentinel"
)

// Disabled is the Reasoner wired when no analysis backend is
// configured. Every call reports ErrUnavailable, so the risk stage
// produces rule-only degraded assessments instead of failing runs.
type Disabled struct{}

// Run always reports the backend as unavailable.
func (Disabled) Run(_ context.Context, _ string) (string, error) {
	return "", fmt.Errorf("no reasoner configured: %w", sentinel.ErrUnavailable)
}
