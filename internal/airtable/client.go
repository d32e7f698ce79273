// Package airtable provides a typed client for the Airtable REST API,
// scoped to the single tools table the bot persists into.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pintegram/toolbot/internal/domain"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Config holds configuration for the Airtable client.
type Config struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string // overridden in tests
	Timeout time.Duration
}

// DefaultConfig returns default client configuration for a base and key.
func DefaultConfig(apiKey, baseID, table string) Config {
	return Config{
		APIKey:  apiKey,
		BaseID:  baseID,
		Table:   table,
		BaseURL: defaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// Client talks to one Airtable table. It performs no retries; failures
// are wrapped and propagated to the caller.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an Airtable client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" || cfg.Table == "" {
		return nil, fmt.Errorf("airtable: api key, base id and table are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type recordFields struct {
	Name        string   `json:"Name"`
	URL         string   `json:"URL"`
	Types       []string `json:"Types"`
	Description string   `json:"Description"`
	State       string   `json:"State"`
	APIServices string   `json:"API Services"`
	IsPaid      []string `json:"isPaid"`
}

type apiRecord struct {
	ID     string       `json:"id,omitempty"`
	Fields recordFields `json:"fields"`
}

type recordsEnvelope struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Create persists a record and returns its Airtable record ID.
func (c *Client) Create(ctx context.Context, rec domain.CompleteRecord) (string, error) {
	body := recordsEnvelope{
		Records: []apiRecord{{Fields: recordFields{
			Name:        rec.Name,
			URL:         rec.URL,
			Types:       rec.Types,
			Description: rec.Description,
			State:       rec.State,
			APIServices: rec.APITier,
			IsPaid:      rec.Payment,
		}}},
	}

	var out recordsEnvelope
	if err := c.do(ctx, http.MethodPost, c.tableURL(""), &body, &out); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	if len(out.Records) == 0 {
		return "", fmt.Errorf("create record: empty response")
	}

	c.logger.Info("Airtable record created", "record_id", out.Records[0].ID, "name", rec.Name)
	return out.Records[0].ID, nil
}

// Delete removes a record by its Airtable record ID.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	if err := c.do(ctx, http.MethodDelete, c.tableURL(recordID), nil, nil); err != nil {
		return fmt.Errorf("delete record %s: %w", recordID, err)
	}
	c.logger.Info("Airtable record deleted", "record_id", recordID)
	return nil
}

// List returns saved records sorted by URL ascending, optionally filtered
// to records containing a single type. Pages are fetched until Airtable
// stops returning an offset.
func (c *Client) List(ctx context.Context, typeFilter string) ([]domain.SavedRecord, error) {
	params := url.Values{}
	params.Set("sort[0][field]", "URL")
	params.Set("sort[0][direction]", "asc")
	if typeFilter != "" {
		params.Set("filterByFormula", fmt.Sprintf("FIND(%q, ARRAYJOIN({Types}))", typeFilter))
	}

	var records []domain.SavedRecord
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}

		var page recordsEnvelope
		if err := c.do(ctx, http.MethodGet, c.tableURL("")+"?"+params.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}

		for _, r := range page.Records {
			records = append(records, domain.SavedRecord{
				ID:          r.ID,
				Name:        r.Fields.Name,
				URL:         r.Fields.URL,
				Description: r.Fields.Description,
				Types:       r.Fields.Types,
				State:       r.Fields.State,
				APITier:     r.Fields.APIServices,
				Payment:     r.Fields.IsPaid,
			})
		}

		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

func (c *Client) tableURL(recordID string) string {
	u := c.cfg.BaseURL + "/" + c.cfg.BaseID + "/" + url.PathEscape(c.cfg.Table)
	if recordID != "" {
		u += "/" + recordID
	}
	return u
}

func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var aerr apiError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &aerr) == nil && aerr.Error.Message != "" {
			return fmt.Errorf("airtable %s: %s (%s)", resp.Status, aerr.Error.Message, aerr.Error.Type)
		}
		return fmt.Errorf("airtable %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
