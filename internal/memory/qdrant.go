package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Payload keys written with every point
const (
	payloadUserID    = "user_id"
	payloadSessionID = "session_id"
	payloadMessage   = "message"
	payloadResponse  = "response"
	payloadTimestamp = "timestamp"
)

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// qdrantError carries a non-2xx reply
type qdrantError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *qdrantError) Error() string {
	return fmt.Sprintf("qdrant %s %s -> http %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// QdrantStore talks to a Qdrant server over its REST API.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// NewQdrantStore creates a Qdrant-backed Store
func NewQdrantStore(baseURL, apiKey, collection string, dimension int) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureCollection creates the collection with cosine distance unless it
// already exists.
func (qs *QdrantStore) EnsureCollection(ctx context.Context) error {
	path := qs.collectionPath("")

	err := qs.do(ctx, http.MethodGet, path, nil, nil)
	if err == nil {
		return nil
	}
	var qerr *qdrantError
	if !errors.As(err, &qerr) || qerr.Code != http.StatusNotFound {
		return fmt.Errorf("failed to inspect collection %s: %w", qs.collection, err)
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     qs.dimension,
			"distance": "Cosine",
		},
	}
	var resp qdrantEnvelope[json.RawMessage]
	if err := qs.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", qs.collection, err)
	}
	return nil
}

// Upsert writes a point and waits for it to be indexed.
func (qs *QdrantStore) Upsert(ctx context.Context, point Point) error {
	if err := checkDimension(point.Vector, qs.dimension); err != nil {
		return err
	}
	ts := point.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	req := map[string]any{
		"points": []map[string]any{{
			"id":     point.ID,
			"vector": point.Vector,
			"payload": map[string]any{
				payloadUserID:    point.UserID,
				payloadSessionID: point.SessionID,
				payloadMessage:   point.Message,
				payloadResponse:  point.Response,
				payloadTimestamp: ts.UTC().Format(time.RFC3339),
			},
		}},
	}
	var resp qdrantEnvelope[json.RawMessage]
	if err := qs.do(ctx, http.MethodPut, qs.collectionPath("/points?wait=true"), req, &resp); err != nil {
		return err
	}
	if resp.Status.Error != "" {
		return errors.New(resp.Status.Error)
	}
	return nil
}

// Search runs a filtered nearest-neighbour query.
func (qs *QdrantStore) Search(ctx context.Context, vector []float32, userID int64, limit int) ([]Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := checkDimension(vector, qs.dimension); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   payloadUserID,
				"match": map[string]any{"value": userID},
			}},
		},
	}
	var resp qdrantEnvelope[[]qdrantScoredPoint]
	if err := qs.do(ctx, http.MethodPost, qs.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, p := range resp.Result {
		matches = append(matches, Match{Exchange: exchangeFromPayload(p.Payload), Score: p.Score})
	}
	return matches, nil
}

func (qs *QdrantStore) Close() error {
	qs.client.CloseIdleConnections()
	return nil
}

func (qs *QdrantStore) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(qs.collection) + suffix
}

func (qs *QdrantStore) do(ctx context.Context, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, qs.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if qs.apiKey != "" {
		req.Header.Set("api-key", qs.apiKey)
	}

	resp, err := qs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode >= 400 {
		return &qdrantError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

func exchangeFromPayload(payload map[string]any) Exchange {
	ex := Exchange{
		SessionID: stringFromAny(payload[payloadSessionID]),
		Message:   stringFromAny(payload[payloadMessage]),
		Response:  stringFromAny(payload[payloadResponse]),
	}
	switch v := payload[payloadUserID].(type) {
	case float64:
		ex.UserID = int64(v)
	case json.Number:
		ex.UserID, _ = v.Int64()
	}
	if ts, err := time.Parse(time.RFC3339, stringFromAny(payload[payloadTimestamp])); err == nil {
		ex.Timestamp = ts
	}
	return ex
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}
