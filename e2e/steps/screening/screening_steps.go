package screening

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	ServicePOST(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers screening-pipeline step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &screeningSteps{tc: tc}

	// Single-transaction screening
	ctx.Step(`^I screen transaction "([^"]*)"$`, steps.screenTransaction)
	ctx.Step(`^transaction "([^"]*)" has been screened$`, steps.transactionHasBeenScreened)
	ctx.Step(`^the screening should report success$`, steps.screeningShouldReportSuccess)
	ctx.Step(`^the risk score should be at least (\d+)$`, steps.riskScoreAtLeast)
	ctx.Step(`^the risk score should be below (\d+)$`, steps.riskScoreBelow)
	ctx.Step(`^the audit rating should be "([^"]*)"$`, steps.auditRatingShouldBe)
	ctx.Step(`^the alert disposition should be "([^"]*)"$`, steps.alertDispositionShouldBe)

	// Batch screening behind the service key
	ctx.Step(`^I batch screen transactions "([^"]*)" with the service key$`, steps.batchScreenWithKey)
	ctx.Step(`^I batch screen transactions "([^"]*)" without a service key$`, steps.batchScreenWithoutKey)
	ctx.Step(`^the batch should report (\d+) completed and (\d+) failed$`, steps.batchShouldReport)
}

type screeningSteps struct {
	tc TestContext
}

func (s *screeningSteps) screenTransaction(ctx context.Context, transactionID string) error {
	return s.tc.POST("/v1/screenings", map[string]interface{}{
		"transaction_id": transactionID,
	})
}

// transactionHasBeenScreened is the Given form: it screens the transaction
// and fails the scenario immediately when the run does not succeed.
func (s *screeningSteps) transactionHasBeenScreened(ctx context.Context, transactionID string) error {
	if err := s.screenTransaction(ctx, transactionID); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("screening %s returned %d: %s", transactionID, status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *screeningSteps) screeningShouldReportSuccess(ctx context.Context) error {
	value, err := s.tc.GetResponseField("succeeded")
	if err != nil {
		return err
	}
	succeeded, ok := value.(bool)
	if !ok || !succeeded {
		return fmt.Errorf("expected succeeded=true, got %v: %s", value, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *screeningSteps) riskScore() (float64, error) {
	value, err := s.tc.GetResponseField("assessment.score")
	if err != nil {
		return 0, err
	}
	score, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("assessment.score is not a number: %v", value)
	}
	return score, nil
}

func (s *screeningSteps) riskScoreAtLeast(ctx context.Context, threshold int) error {
	score, err := s.riskScore()
	if err != nil {
		return err
	}
	if score < float64(threshold) {
		return fmt.Errorf("expected risk score >= %d, got %.1f", threshold, score)
	}
	return nil
}

func (s *screeningSteps) riskScoreBelow(ctx context.Context, threshold int) error {
	score, err := s.riskScore()
	if err != nil {
		return err
	}
	if score >= float64(threshold) {
		return fmt.Errorf("expected risk score < %d, got %.1f", threshold, score)
	}
	return nil
}

func (s *screeningSteps) auditRatingShouldBe(ctx context.Context, rating string) error {
	value, err := s.tc.GetResponseField("audit.report.compliance_rating")
	if err != nil {
		return err
	}
	if actual := fmt.Sprintf("%v", value); actual != rating {
		return fmt.Errorf("expected compliance rating %q, got %q", rating, actual)
	}
	return nil
}

func (s *screeningSteps) alertDispositionShouldBe(ctx context.Context, disposition string) error {
	value, err := s.tc.GetResponseField("alert.disposition")
	if err != nil {
		return err
	}
	if actual := fmt.Sprintf("%v", value); actual != disposition {
		return fmt.Errorf("expected alert disposition %q, got %q", disposition, actual)
	}
	return nil
}

func batchBody(transactionIDs string) map[string]interface{} {
	ids := strings.Split(transactionIDs, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}
	return map[string]interface{}{"transaction_ids": ids}
}

func (s *screeningSteps) batchScreenWithKey(ctx context.Context, transactionIDs string) error {
	return s.tc.ServicePOST("/v1/screenings/batch", batchBody(transactionIDs))
}

func (s *screeningSteps) batchScreenWithoutKey(ctx context.Context, transactionIDs string) error {
	return s.tc.POST("/v1/screenings/batch", batchBody(transactionIDs))
}

func (s *screeningSteps) batchShouldReport(ctx context.Context, completed, failed int) error {
	completedValue, err := s.tc.GetResponseField("completed")
	if err != nil {
		return err
	}
	failedValue, err := s.tc.GetResponseField("failed")
	if err != nil {
		return err
	}
	if int(completedValue.(float64)) != completed || int(failedValue.(float64)) != failed {
		return fmt.Errorf("expected %d completed and %d failed, got %v and %v: %s",
			completed, failed, completedValue, failedValue, s.tc.GetLastResponseBody())
	}
	return nil
}
