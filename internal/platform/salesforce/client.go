// Package salesforce implements the platform capability over the REST API.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

const (
	DefaultAPIVersion = "62.0"
	// Collections calls accept at most 200 records.
	batchSize = 200
)

type Client struct {
	Alias       string
	InstanceURL string
	AccessToken string
	APIVersion  string
	HTTP        *http.Client
}

func NewClient(alias, instanceURL, accessToken, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		Alias:       alias,
		InstanceURL: strings.TrimRight(instanceURL, "/"),
		AccessToken: accessToken,
		APIVersion:  apiVersion,
		HTTP:        &http.Client{Timeout: 2 * time.Minute},
	}
}

type apiError struct {
	Message    string   `json:"message"`
	ErrorCode  string   `json:"errorCode"`
	StatusCode string   `json:"statusCode"`
	Fields     []string `json:"fields"`
}

type saveResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Created bool       `json:"created"`
	Errors  []apiError `json:"errors"`
}

type queryResponse struct {
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []*models.Record `json:"records"`
}

func (c *Client) Query(ctx context.Context, q string) ([]*models.Record, error) {
	path := c.path("/query?q=" + url.QueryEscape(q))
	var out []*models.Record
	for path != "" {
		var resp queryResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Records...)
		path = ""
		if !resp.Done && resp.NextRecordsURL != "" {
			path = resp.NextRecordsURL
		}
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error) {
	results, err := c.collection(ctx, http.MethodPost, c.path("/composite/sobjects"), objectType, rows, false)
	// Create responses carry no created flag.
	for i := range results {
		results[i].Created = results[i].Success
	}
	return results, err
}

func (c *Client) Update(ctx context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error) {
	return c.collection(ctx, http.MethodPatch, c.path("/composite/sobjects"), objectType, rows, false)
}

func (c *Client) Upsert(ctx context.Context, objectType string, rows []models.Row, keyField string, allOrNone bool) ([]models.WriteResult, error) {
	path := c.path(fmt.Sprintf("/composite/sobjects/%s/%s", objectType, keyField))
	return c.collection(ctx, http.MethodPatch, path, objectType, rows, allOrNone)
}

func (c *Client) Delete(ctx context.Context, objectType string, ids []string) ([]models.WriteResult, error) {
	var out []models.WriteResult
	for start := 0; start < len(ids); start += batchSize {
		chunk := ids[start:min(start+batchSize, len(ids))]
		path := c.path("/composite/sobjects?allOrNone=false&ids=" + url.QueryEscape(strings.Join(chunk, ",")))
		var results []saveResult
		if err := c.do(ctx, http.MethodDelete, path, nil, &results); err != nil {
			return out, fmt.Errorf("delete %s: %w", objectType, err)
		}
		keys := make([]string, len(chunk))
		copy(keys, chunk)
		res, err := pair(keys, results)
		if err != nil {
			return out, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (c *Client) Describe(ctx context.Context, objectType string) (*models.ObjectSchema, error) {
	var s models.ObjectSchema
	if err := c.do(ctx, http.MethodGet, c.path("/sobjects/"+objectType+"/describe"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DescribeGlobal(ctx context.Context) ([]models.ObjectType, error) {
	var resp struct {
		Sobjects []models.ObjectType `json:"sobjects"`
	}
	if err := c.do(ctx, http.MethodGet, c.path("/sobjects"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sobjects, nil
}

// collection sends rows in chunks. The API answers in request order, which
// is where results get their keys back. A failed chunk returns the results
// of the chunks written before it along with the error.
func (c *Client) collection(ctx context.Context, method, path, objectType string, rows []models.Row, allOrNone bool) ([]models.WriteResult, error) {
	var out []models.WriteResult
	for start := 0; start < len(rows); start += batchSize {
		chunk := rows[start:min(start+batchSize, len(rows))]
		body := struct {
			AllOrNone bool              `json:"allOrNone"`
			Records   []json.RawMessage `json:"records"`
		}{AllOrNone: allOrNone}
		keys := make([]string, len(chunk))
		for i, row := range chunk {
			keys[i] = row.Key
			raw, err := withType(row.Record, objectType)
			if err != nil {
				return out, err
			}
			body.Records = append(body.Records, raw)
		}
		var results []saveResult
		if err := c.do(ctx, method, path, body, &results); err != nil {
			return out, fmt.Errorf("%s %s: %w", strings.ToLower(method), objectType, err)
		}
		res, err := pair(keys, results)
		if err != nil {
			return out, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func pair(keys []string, results []saveResult) ([]models.WriteResult, error) {
	if len(keys) != len(results) {
		return nil, fmt.Errorf("expected %d results, got %d", len(keys), len(results))
	}
	out := make([]models.WriteResult, len(results))
	for i, r := range results {
		wr := models.WriteResult{Key: keys[i], Success: r.Success, ID: r.ID, Created: r.Created}
		for _, e := range r.Errors {
			code := e.StatusCode
			if code == "" {
				code = e.ErrorCode
			}
			wr.Errors = append(wr.Errors, models.WriteError{StatusCode: code, Message: e.Message, Fields: e.Fields})
		}
		out[i] = wr
	}
	return out, nil
}

func withType(r *models.Record, objectType string) (json.RawMessage, error) {
	attrs, _ := json.Marshal(map[string]string{"type": objectType})
	payload := models.NewRecord()
	payload.Set(models.FieldAttributes, models.Object(attrs))
	for _, f := range r.Fields() {
		if f == models.FieldAttributes {
			continue
		}
		v, _ := r.Get(f)
		payload.Set(f, v)
	}
	return payload.MarshalJSON()
}

func (c *Client) path(p string) string {
	return "/services/data/v" + c.APIVersion + p
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.InstanceURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("%s %s %s", c.Alias, method, path)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErrs []apiError
		if json.Unmarshal(data, &apiErrs) == nil && len(apiErrs) > 0 {
			return fmt.Errorf("%s (%s): %s", apiErrs[0].ErrorCode, resp.Status, apiErrs[0].Message)
		}
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
