//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseTransactionID tests that parsing never panics on arbitrary input
// and that accepted values round-trip unchanged.
func FuzzParseTransactionID(f *testing.F) {
	f.Add("")
	f.Add("TX1001")
	f.Add("tx1001")
	f.Add("'; DROP TABLE transactions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("TX1001\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTransactionID(input)

		if err == nil {
			roundTrip, err2 := ParseTransactionID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseLedgerIDs ensures transaction and customer IDs validate identically.
func FuzzParseLedgerIDs(f *testing.F) {
	f.Add("TX1001")
	f.Add("")
	f.Add("invalid!")

	f.Fuzz(func(t *testing.T, input string) {
		_, errTx := ParseTransactionID(input)
		_, errCust := ParseCustomerID(input)

		if (errTx == nil) != (errCust == nil) {
			t.Error("inconsistent validation across ledger ID types")
		}
	})
}
