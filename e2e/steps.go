package e2e

import (
	"github.com/cucumber/godog"

	"vigil/e2e/steps/common"
	"vigil/e2e/steps/review"
	"vigil/e2e/steps/screening"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register screening-pipeline steps
	screening.RegisterSteps(ctx, tc)

	// Register alert-review steps
	review.RegisterSteps(ctx, tc)
}
