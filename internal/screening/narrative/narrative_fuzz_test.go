//go:build go1.18

package narrative

import (
	"testing"

	"vigil/internal/screening"
)

// FuzzParse feeds arbitrary text through the parser and checks the
// structural invariants that every caller relies on: parsing never
// panics, is deterministic, computed scores stay in [10,100], and
// factors come back as a normalized subset of the configured vocabulary.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"",
		"risk score: 42",
		"Risk Score: 88.5 Risk Level: HIGH Transaction TX1001",
		"No sanctions concern; transaction is not suspicious and amount is below the reporting threshold.",
		"russia destination, high amount, suspicious, past fraud: block immediately",
		"low risk, approve",
		"risk score: 99999",
		"risk score: -5",
		"sanctions sanctions sanctions",
		"risk\tscore:\t7.25",
		"ransaction high-risk country corridor \xf0\x28\x8c\x28",
		"транзакция risk score: 55 подозрительная",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	p := NewParser()
	known := map[screening.RiskFactor]bool{}
	for _, rule := range DefaultFactorRules() {
		known[rule.Factor] = true
	}

	f.Fuzz(func(t *testing.T, text string) {
		a := p.Parse(text)

		if !a.ScoreExplicit {
			if a.Score < 10 || a.Score > 100 {
				t.Fatalf("computed score %v out of [10,100] for %q", a.Score, text)
			}
		}

		for _, factor := range a.Factors {
			if !known[factor] {
				t.Fatalf("factor %q outside configured vocabulary for %q", factor, text)
			}
		}
		normalized := screening.NormalizeFactors(a.Factors)
		if len(normalized) != len(a.Factors) {
			t.Fatalf("factors not normalized for %q: %v", text, a.Factors)
		}

		again := p.Parse(text)
		if again.Score != a.Score || again.ScoreExplicit != a.ScoreExplicit || again.LevelToken != a.LevelToken {
			t.Fatalf("parse not deterministic for %q", text)
		}
	})
}
