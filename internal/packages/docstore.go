package packages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// HTTPStore talks to the external document store over its JSON API. Upserts
// are split into size-bounded batches and each request is retried with
// jittered backoff.
type HTTPStore struct {
	endpoint        string
	httpClient      *http.Client
	maxPayloadBytes int
	maxRetries      int
	baseBackoff     time.Duration
	random          *rand.Rand
}

type documentsEnvelope struct {
	Documents []Document `json:"documents"`
}

type backupRequest struct {
	BackupID          string `json:"backup_id"`
	WaitForCompletion bool   `json:"wait_for_completion"`
}

func NewHTTPStore(endpoint string, maxPayloadBytes int) *HTTPStore {
	return &HTTPStore{
		endpoint:        endpoint,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		maxPayloadBytes: maxPayloadBytes,
		maxRetries:      5,
		baseBackoff:     500 * time.Millisecond,
		random:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *HTTPStore) SetTestOptions(client *http.Client, retries int, backoff time.Duration) {
	if client != nil {
		s.httpClient = client
	}
	s.maxRetries = retries
	s.baseBackoff = backoff
}

// EnsureSchema declares the packages collection; the store treats repeat
// declarations as a no-op.
func (s *HTTPStore) EnsureSchema(ctx context.Context) error {
	body, err := json.Marshal(struct {
		Name       string   `json:"name"`
		Properties []string `json:"properties"`
	}{
		Name:       "packages",
		Properties: []string{"name", "type", "status", "description"},
	})
	if err != nil {
		return err
	}
	return s.sendWithRetry(ctx, http.MethodPost, "/v1/collections", body)
}

// Existing lists the documents already in the store, keyed by package key.
func (s *HTTPStore) Existing(ctx context.Context) (map[string]Package, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/v1/collections/packages/documents", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("list documents: status %d", resp.StatusCode)
	}

	var envelope documentsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	out := make(map[string]Package, len(envelope.Documents))
	for _, doc := range envelope.Documents {
		pkg := Package{Name: doc.Name, Type: doc.Type, Status: doc.Status, Description: doc.Description}
		out[pkg.Key()] = pkg
	}
	return out, nil
}

// Upsert writes documents in batches that stay under the payload cap. An
// oversized single document still goes out as its own batch.
func (s *HTTPStore) Upsert(ctx context.Context, docs []Document) error {
	for _, batch := range s.buildBatches(docs) {
		body, err := json.Marshal(documentsEnvelope{Documents: batch})
		if err != nil {
			return err
		}
		if err := s.sendWithRetry(ctx, http.MethodPost, "/v1/collections/packages/documents", body); err != nil {
			return fmt.Errorf("upsert batch of %d: %w", len(batch), err)
		}
	}
	return nil
}

func (s *HTTPStore) Backup(ctx context.Context, backupID string) error {
	body, err := json.Marshal(backupRequest{BackupID: backupID, WaitForCompletion: true})
	if err != nil {
		return err
	}
	return s.sendWithRetry(ctx, http.MethodPost, "/v1/backups", body)
}

func (s *HTTPStore) Restore(ctx context.Context, backupID string) error {
	return s.sendWithRetry(ctx, http.MethodPost, "/v1/backups/"+url.PathEscape(backupID)+"/restore", nil)
}

func (s *HTTPStore) buildBatches(docs []Document) [][]Document {
	out := make([][]Document, 0)
	cur := make([]Document, 0)
	curSize := 0

	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		size := len(raw)
		if len(cur) > 0 && curSize+size > s.maxPayloadBytes {
			out = append(out, cur)
			cur = nil
			curSize = 0
		}
		cur = append(cur, doc)
		curSize += size
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func (s *HTTPStore) sendWithRetry(ctx context.Context, method, path string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
				return nil
			}
			err = fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		lastErr = err

		maxSleep := s.baseBackoff * time.Duration(1<<attempt)
		if maxSleep > 30*time.Second {
			maxSleep = 30 * time.Second
		}
		sleep := time.Duration(s.random.Int63n(int64(maxSleep) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("request failed after retries: %w", lastErr)
}
