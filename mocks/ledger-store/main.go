// Command ledger-store is a mock of the upstream ledger data-store API
// for local development and end-to-end tests. It serves the wire
// contract from vigil/contracts/ledger over a fixed sample dataset and
// can simulate upstream latency.
//
// Environment:
//
//	LEDGER_ADDR     listen address (default :9090)
//	LEDGER_LATENCY  artificial delay per request, e.g. 150ms (default 0)
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	ledger "vigil/contracts/ledger"
)

type server struct {
	logger       *slog.Logger
	latency      time.Duration
	transactions map[string]ledger.Transaction
	customers    map[string]ledger.Customer
	predictions  map[string]ledger.Prediction
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "ledger-store")

	addr := os.Getenv("LEDGER_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	var latency time.Duration
	if v := os.Getenv("LEDGER_LATENCY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid LEDGER_LATENCY", "value", v, "error", err)
			os.Exit(1)
		}
		latency = d
	}

	s := &server{
		logger:       logger,
		latency:      latency,
		transactions: make(map[string]ledger.Transaction),
		customers:    make(map[string]ledger.Customer),
		predictions:  make(map[string]ledger.Prediction),
	}
	s.seed()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/transactions/{transactionID}", s.handleGetTransaction)
	r.Get("/transactions/{transactionID}/prediction", s.handleGetPrediction)
	r.Get("/customers/{customerID}", s.handleGetCustomer)
	r.Get("/customers/{customerID}/transactions", s.handleCustomerTransactions)
	r.Get("/destinations/{country}/transactions", s.handleDestinationTransactions)

	logger.Info("ledger-store listening", "addr", addr, "latency", latency.String())
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// seed loads the sample dataset: one high-risk case (TX1001, sanctions
// destination, new account with prior fraud), one elevated case
// (TX1004, large amount to a high-risk country), and routine domestic
// traffic for history averages.
func (s *server) seed() {
	base := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

	for _, c := range []ledger.Customer{
		{CustomerID: "CUST1001", Name: "John Smith", Country: "US", AccountAgeDays: 25, DeviceTrustScore: 0.3, PastFraud: true},
		{CustomerID: "CUST1002", Name: "Maria Alvarez", Country: "US", AccountAgeDays: 1200, DeviceTrustScore: 0.92},
		{CustomerID: "CUST1003", Name: "Wei Chen", Country: "SG", AccountAgeDays: 210, DeviceTrustScore: 0.55},
	} {
		s.customers[c.CustomerID] = c
	}

	for _, tx := range []ledger.Transaction{
		{TransactionID: "TX1001", CustomerID: "CUST1001", Amount: 15000, Currency: "USD", DestinationCountry: "IR", Timestamp: base},
		{TransactionID: "TX1002", CustomerID: "CUST1002", Amount: 450, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-2 * time.Hour)},
		{TransactionID: "TX1003", CustomerID: "CUST1002", Amount: 1800, Currency: "USD", DestinationCountry: "GB", Timestamp: base.Add(-26 * time.Hour)},
		{TransactionID: "TX1004", CustomerID: "CUST1003", Amount: 12000, Currency: "USD", DestinationCountry: "NG", Timestamp: base.Add(-4 * time.Hour)},
		{TransactionID: "TX1005", CustomerID: "CUST1001", Amount: 900, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-72 * time.Hour)},
		{TransactionID: "TX1006", CustomerID: "CUST1002", Amount: 380, Currency: "USD", DestinationCountry: "US", Timestamp: base.Add(-96 * time.Hour)},
	} {
		s.transactions[tx.TransactionID] = tx
	}

	s.predictions["TX1001"] = ledger.Prediction{TransactionID: "TX1001", Score: 0.87, ModelVersion: "fraud-detect-v2"}
	s.predictions["TX1004"] = ledger.Prediction{TransactionID: "TX1004", Score: 0.55, ModelVersion: "fraud-detect-v2"}
}

func (s *server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	txID := chi.URLParam(r, "transactionID")

	tx, ok := s.transactions[txID]
	if !ok {
		s.writeNotFound(w, "transaction "+txID+" not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	txID := chi.URLParam(r, "transactionID")

	prediction, ok := s.predictions[txID]
	if !ok {
		s.writeNotFound(w, "no prediction for transaction "+txID)
		return
	}
	s.writeJSON(w, http.StatusOK, prediction)
}

func (s *server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	customerID := chi.URLParam(r, "customerID")

	customer, ok := s.customers[customerID]
	if !ok {
		s.writeNotFound(w, "customer "+customerID+" not found")
		return
	}
	s.writeJSON(w, http.StatusOK, customer)
}

func (s *server) handleCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	customerID := chi.URLParam(r, "customerID")

	var txs []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.CustomerID == customerID {
			txs = append(txs, tx)
		}
	}
	s.writeJSON(w, http.StatusOK, newestFirst(txs))
}

func (s *server) handleDestinationTransactions(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	country := chi.URLParam(r, "country")

	var txs []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.DestinationCountry == country {
			txs = append(txs, tx)
		}
	}
	s.writeJSON(w, http.StatusOK, newestFirst(txs))
}

func newestFirst(txs []ledger.Transaction) ledger.TransactionList {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	return ledger.TransactionList{Transactions: txs}
}

func (s *server) simulateLatency() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *server) writeNotFound(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusNotFound, ledger.Error{Code: "not_found", Message: message})
}
