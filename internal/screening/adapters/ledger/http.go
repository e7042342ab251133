// Package ledger provides the LedgerStore adapters: an HTTP client for
// the upstream ledger service, a pgx reader for deployments with direct
// database access, and a seeded in-memory fake for tests and demos.
//
// All three return sentinel.ErrNotFound (wrapped) for missing records,
// so the enrichment stage degrades identically regardless of backend.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ledgerapi "vigil/contracts/ledger"
	"vigil/internal/screening"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

const defaultHTTPTimeout = 10 * time.Second

// Client is the HTTP adapter for the ledger data-store API. It speaks
// the wire contract from vigil/contracts/ledger and maps responses to
// domain types at the edge.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client. Use it to tune
// timeouts or inject a transport.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient creates a ledger API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ledger base URL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetTransaction retrieves one transaction by ID.
func (c *Client) GetTransaction(ctx context.Context, txID id.TransactionID) (*screening.Transaction, error) {
	var dto ledgerapi.Transaction
	if err := c.getJSON(ctx, "/transactions/"+url.PathEscape(txID.String()), &dto); err != nil {
		return nil, fmt.Errorf("ledger transaction %s: %w", txID, err)
	}

	tx := mapTransaction(dto)
	return &tx, nil
}

// GetCustomer retrieves the customer profile.
func (c *Client) GetCustomer(ctx context.Context, customerID id.CustomerID) (*screening.CustomerProfile, error) {
	var dto ledgerapi.Customer
	if err := c.getJSON(ctx, "/customers/"+url.PathEscape(customerID.String()), &dto); err != nil {
		return nil, fmt.Errorf("ledger customer %s: %w", customerID, err)
	}

	profile := screening.CustomerProfile{
		CustomerID:       id.CustomerID(dto.CustomerID),
		Name:             dto.Name,
		Country:          dto.Country,
		AccountAgeDays:   dto.AccountAgeDays,
		DeviceTrustScore: dto.DeviceTrustScore,
		PastFraud:        dto.PastFraud,
	}
	return &profile, nil
}

// GetTransactionsByCustomer retrieves the customer's history, newest
// first.
func (c *Client) GetTransactionsByCustomer(ctx context.Context, customerID id.CustomerID) ([]screening.Transaction, error) {
	var dto ledgerapi.TransactionList
	if err := c.getJSON(ctx, "/customers/"+url.PathEscape(customerID.String())+"/transactions", &dto); err != nil {
		return nil, fmt.Errorf("ledger history for %s: %w", customerID, err)
	}
	return mapTransactions(dto.Transactions), nil
}

// GetTransactionsByDestination retrieves recent transactions to the
// destination country.
func (c *Client) GetTransactionsByDestination(ctx context.Context, country string) ([]screening.Transaction, error) {
	var dto ledgerapi.TransactionList
	if err := c.getJSON(ctx, "/destinations/"+url.PathEscape(country)+"/transactions", &dto); err != nil {
		return nil, fmt.Errorf("ledger destination history for %s: %w", country, err)
	}
	return mapTransactions(dto.Transactions), nil
}

// GetPrediction retrieves the advisory model score, if one exists.
func (c *Client) GetPrediction(ctx context.Context, txID id.TransactionID) (*screening.MLPrediction, error) {
	var dto ledgerapi.Prediction
	if err := c.getJSON(ctx, "/transactions/"+url.PathEscape(txID.String())+"/prediction", &dto); err != nil {
		return nil, fmt.Errorf("ledger prediction for %s: %w", txID, err)
	}

	prediction := screening.MLPrediction{
		TransactionID: id.TransactionID(dto.TransactionID),
		Score:         dto.Score,
		ModelVersion:  dto.ModelVersion,
	}
	return &prediction, nil
}

// getJSON performs one GET and decodes the 200 body into out. 404 maps
// to sentinel.ErrNotFound, 5xx to sentinel.ErrUnavailable.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode ledger response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("ledger responded %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		var apiErr ledgerapi.Error
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Code != "" {
			return fmt.Errorf("ledger responded %d (%s)", resp.StatusCode, apiErr.Code)
		}
		return fmt.Errorf("ledger responded %d", resp.StatusCode)
	}
}

func mapTransaction(dto ledgerapi.Transaction) screening.Transaction {
	return screening.Transaction{
		ID:                 id.TransactionID(dto.TransactionID),
		CustomerID:         id.CustomerID(dto.CustomerID),
		Amount:             dto.Amount,
		Currency:           dto.Currency,
		DestinationCountry: dto.DestinationCountry,
		Timestamp:          dto.Timestamp,
	}
}

func mapTransactions(dtos []ledgerapi.Transaction) []screening.Transaction {
	if len(dtos) == 0 {
		return nil
	}
	txs := make([]screening.Transaction, len(dtos))
	for i, dto := range dtos {
		txs[i] = mapTransaction(dto)
	}
	return txs
}
