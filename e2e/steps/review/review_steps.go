package review

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	AuthGET(path string) error
	AuthPOST(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (interface{}, error)
	SetAlertID(id string)
	GetAlertID() string
}

// RegisterSteps registers alert-review step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &reviewSteps{tc: tc}

	// Alert listing and selection
	ctx.Step(`^I list open alerts as an analyst$`, steps.listOpenAlerts)
	ctx.Step(`^I list alerts without a token$`, steps.listAlertsWithoutToken)
	ctx.Step(`^the response should contain at least (\d+) alerts?$`, steps.responseContainsAtLeastNAlerts)
	ctx.Step(`^I remember the newest open alert for transaction "([^"]*)"$`, steps.rememberNewestOpenAlert)

	// Alert triage
	ctx.Step(`^I move the alert to "([^"]*)" with note "([^"]*)"$`, steps.moveAlertToStatus)
	ctx.Step(`^the alert status should be "([^"]*)"$`, steps.alertStatusShouldBe)
	ctx.Step(`^I fetch the alert$`, steps.fetchAlert)

	// Executive summary
	ctx.Step(`^I request the compliance summary as an analyst$`, steps.requestSummary)
	ctx.Step(`^the summary should cover at least (\d+) reports?$`, steps.summaryCoversAtLeastNReports)
}

type reviewSteps struct {
	tc TestContext
}

func (s *reviewSteps) listOpenAlerts(ctx context.Context) error {
	return s.tc.AuthGET("/v1/alerts?status=open")
}

func (s *reviewSteps) listAlertsWithoutToken(ctx context.Context) error {
	return s.tc.GET("/v1/alerts", nil)
}

func (s *reviewSteps) responseContainsAtLeastNAlerts(ctx context.Context, n int) error {
	value, err := s.tc.GetResponseField("count")
	if err != nil {
		return err
	}
	count, ok := value.(float64)
	if !ok || int(count) < n {
		return fmt.Errorf("expected at least %d alerts, got %v", n, value)
	}
	return nil
}

// rememberNewestOpenAlert lists open alerts and records the first one for the
// given transaction. Listings are newest first, so this picks the alert the
// background screening just created.
func (s *reviewSteps) rememberNewestOpenAlert(ctx context.Context, transactionID string) error {
	if err := s.listOpenAlerts(ctx); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("listing alerts returned %d: %s", status, s.tc.GetLastResponseBody())
	}

	value, err := s.tc.GetResponseField("alerts")
	if err != nil {
		return err
	}
	alerts, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("alerts field is not a list: %v", value)
	}
	for _, entry := range alerts {
		alert, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", alert["transaction_id"]) != transactionID {
			continue
		}
		alertID, ok := alert["alert_id"].(string)
		if !ok || alertID == "" {
			return fmt.Errorf("alert for %s has no alert_id: %v", transactionID, alert)
		}
		s.tc.SetAlertID(alertID)
		return nil
	}
	return fmt.Errorf("no open alert found for transaction %s", transactionID)
}

func (s *reviewSteps) moveAlertToStatus(ctx context.Context, status, note string) error {
	alertID := s.tc.GetAlertID()
	if alertID == "" {
		return fmt.Errorf("no alert selected, use a remember step first")
	}
	return s.tc.AuthPOST("/v1/alerts/"+alertID+"/status", map[string]interface{}{
		"status": status,
		"note":   note,
	})
}

func (s *reviewSteps) alertStatusShouldBe(ctx context.Context, expected string) error {
	value, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if actual := fmt.Sprintf("%v", value); actual != expected {
		return fmt.Errorf("expected alert status %q, got %q", expected, actual)
	}
	return nil
}

func (s *reviewSteps) fetchAlert(ctx context.Context) error {
	alertID := s.tc.GetAlertID()
	if alertID == "" {
		return fmt.Errorf("no alert selected, use a remember step first")
	}
	return s.tc.AuthGET("/v1/alerts/" + alertID)
}

func (s *reviewSteps) requestSummary(ctx context.Context) error {
	return s.tc.AuthGET("/v1/reports/summary")
}

func (s *reviewSteps) summaryCoversAtLeastNReports(ctx context.Context, n int) error {
	value, err := s.tc.GetResponseField("reports.total_reports")
	if err != nil {
		return err
	}
	total, ok := value.(float64)
	if !ok || int(total) < n {
		return fmt.Errorf("expected summary to cover at least %d reports, got %v", n, value)
	}
	return nil
}
