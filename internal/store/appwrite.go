package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AppwriteClient talks to an Appwrite-compatible backend and implements both
// DocumentStore (databases API) and IdentityStore (users API).
type AppwriteClient struct {
	http       *resty.Client
	databaseID string
	logger     *zap.Logger
}

func NewAppwriteClient(endpoint, projectID, apiKey, databaseID string, logger *zap.Logger) *AppwriteClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Appwrite-Project", projectID).
		SetHeader("X-Appwrite-Key", apiKey)

	return &AppwriteClient{
		http:       client,
		databaseID: databaseID,
		logger:     logger,
	}
}

var (
	_ DocumentStore = (*AppwriteClient)(nil)
	_ IdentityStore = (*AppwriteClient)(nil)
)

type appwriteError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

type appwriteDocumentList struct {
	Total     int              `json:"total"`
	Documents []map[string]any `json:"documents"`
}

func (c *AppwriteClient) List(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	queries, err := encodeQueries(filters)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	for _, q := range queries {
		params.Add("queries[]", q)
	}

	var result appwriteDocumentList
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&result).
		SetError(&apiErr).
		Get(fmt.Sprintf("/databases/%s/collections/%s/documents", c.databaseID, collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", collection, err)
	}
	if resp.IsError() {
		return nil, statusError("list documents", collection, resp, apiErr)
	}

	out := make([]Document, 0, len(result.Documents))
	for _, raw := range result.Documents {
		out = append(out, decodeAppwriteDocument(raw))
	}
	return out, nil
}

func (c *AppwriteClient) Create(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	if id == "" {
		id = "unique()"
	}
	var raw map[string]any
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"documentId": id, "data": fields}).
		SetResult(&raw).
		SetError(&apiErr).
		Post(fmt.Sprintf("/databases/%s/collections/%s/documents", c.databaseID, collection))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s document: %w", collection, err)
	}
	if resp.IsError() {
		return nil, statusError("create document", collection, resp, apiErr)
	}
	doc := decodeAppwriteDocument(raw)
	return &doc, nil
}

func (c *AppwriteClient) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"data": fields}).
		SetError(&apiErr).
		Patch(fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.databaseID, collection, id))
	if err != nil {
		return fmt.Errorf("failed to update %s document %s: %w", collection, id, err)
	}
	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return statusError("update document", collection, resp, apiErr)
	}
	return nil
}

func (c *AppwriteClient) Delete(ctx context.Context, collection, id string) error {
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete(fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.databaseID, collection, id))
	if err != nil {
		return fmt.Errorf("failed to delete %s document %s: %w", collection, id, err)
	}
	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return statusError("delete document", collection, resp, apiErr)
	}
	return nil
}

func (c *AppwriteClient) CreatePrincipal(ctx context.Context, email, secret, displayName string) (string, error) {
	var raw map[string]any
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"userId":   "unique()",
			"email":    email,
			"password": secret,
			"name":     displayName,
		}).
		SetResult(&raw).
		SetError(&apiErr).
		Post("/users")
	if err != nil {
		return "", fmt.Errorf("failed to create principal: %w", err)
	}
	if resp.IsError() {
		return "", statusError("create principal", "users", resp, apiErr)
	}
	id, _ := raw["$id"].(string)
	return id, nil
}

func (c *AppwriteClient) DeletePrincipal(ctx context.Context, principalID string) error {
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete("/users/" + principalID)
	if err != nil {
		return fmt.Errorf("failed to delete principal %s: %w", principalID, err)
	}
	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return statusError("delete principal", "users", resp, apiErr)
	}
	return nil
}

func (c *AppwriteClient) SetLabels(ctx context.Context, principalID string, labels []string) error {
	var apiErr appwriteError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"labels": labels}).
		SetError(&apiErr).
		Put("/users/" + principalID + "/labels")
	if err != nil {
		return fmt.Errorf("failed to set labels for principal %s: %w", principalID, err)
	}
	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return statusError("set principal labels", "users", resp, apiErr)
	}
	return nil
}

// encodeQueries renders filters as the JSON query envelopes the Appwrite
// REST API expects, one per "queries[]" parameter.
func encodeQueries(filters []Filter) ([]string, error) {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		obj, err := queryObject(f)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func queryObject(f Filter) (map[string]any, error) {
	switch f.Op {
	case OpEqual, OpNotEqual, OpLessThan:
		return map[string]any{
			"method":    string(f.Op),
			"attribute": f.Field,
			"values":    normalizeValues(f.Values),
		}, nil
	case OpIsNull:
		return map[string]any{"method": "isNull", "attribute": f.Field}, nil
	case OpLimit:
		return map[string]any{"method": "limit", "values": f.Values}, nil
	case OpOr:
		sub := make([]map[string]any, 0, len(f.Sub))
		for _, s := range f.Sub {
			obj, err := queryObject(s)
			if err != nil {
				return nil, err
			}
			sub = append(sub, obj)
		}
		return map[string]any{"method": "or", "values": sub}, nil
	default:
		return nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

func normalizeValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if t, ok := v.(time.Time); ok {
			out[i] = t.UTC().Format(time.RFC3339)
			continue
		}
		out[i] = v
	}
	return out
}

// decodeAppwriteDocument splits the $-prefixed meta attributes off the
// payload fields.
func decodeAppwriteDocument(raw map[string]any) Document {
	doc := Document{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "$id":
			doc.ID, _ = v.(string)
		case "$createdAt":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					doc.CreatedAt = t
				}
			}
		case "$updatedAt":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					doc.UpdatedAt = t
				}
			}
		case "$collectionId", "$databaseId", "$permissions", "$sequence":
			// meta attributes the engine has no use for
		default:
			doc.Fields[k] = v
		}
	}
	return doc
}

func statusError(op, collection string, resp *resty.Response, apiErr appwriteError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = resp.Status()
	}
	return fmt.Errorf("%s failed for %s: %s (status %d)", op, collection, msg, resp.StatusCode())
}
