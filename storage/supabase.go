package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"listingdesk/config"
)

// SupabaseGateway talks to PostgREST (/rest/v1) and Storage (/storage/v1).
// Requests carry the signed-in user's access token when one is set so row
// level security applies; otherwise the configured key is used.
type SupabaseGateway struct {
	url    string
	key    string
	client *http.Client

	mu    sync.RWMutex
	token string
}

func NewSupabaseGateway(cfg *config.SupabaseConfig, client *http.Client) *SupabaseGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	key := cfg.AnonKey
	if key == "" {
		key = cfg.ServiceKey
	}
	return &SupabaseGateway{
		url:    strings.TrimRight(cfg.URL, "/"),
		key:    key,
		client: client,
	}
}

// SetAccessToken switches the bearer token; empty reverts to the API key.
func (s *SupabaseGateway) SetAccessToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *SupabaseGateway) bearer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token != "" {
		return s.token
	}
	return s.key
}

func (s *SupabaseGateway) Insert(ctx context.Context, collection string, records ...Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	data, err := s.do(ctx, http.MethodPost, s.restURL(collection, nil, nil), bytes.NewReader(body), "application/json", map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return decodeRecords(data)
}

func (s *SupabaseGateway) Update(ctx context.Context, collection string, filter Filter, patch Record) ([]Record, error) {
	if len(filter) == 0 {
		return nil, ErrUnfilteredMutation
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	data, err := s.do(ctx, http.MethodPatch, s.restURL(collection, filter, nil), bytes.NewReader(body), "application/json", map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", collection, err)
	}
	return decodeRecords(data)
}

func (s *SupabaseGateway) Delete(ctx context.Context, collection string, filter Filter) error {
	if len(filter) == 0 {
		return ErrUnfilteredMutation
	}
	if _, err := s.do(ctx, http.MethodDelete, s.restURL(collection, filter, nil), nil, "", nil); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (s *SupabaseGateway) Select(ctx context.Context, collection string, filter Filter, order ...Order) ([]Record, error) {
	data, err := s.do(ctx, http.MethodGet, s.restURL(collection, filter, order), nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return decodeRecords(data)
}

func (s *SupabaseGateway) restURL(collection string, filter Filter, order []Order) string {
	return s.url + "/rest/v1/" + collection + "?" + PostgRESTQuery(filter, order).Encode()
}

// PostgRESTQuery renders a filter and ordering as PostgREST query parameters.
func PostgRESTQuery(filter Filter, order []Order) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	for _, c := range filter {
		switch c.Op {
		case "in":
			quoted := make([]string, len(c.Values))
			for i, v := range c.Values {
				quoted[i] = quoteInValue(v)
			}
			q.Add(c.Column, "in.("+strings.Join(quoted, ",")+")")
		default:
			if c.Value == nil {
				q.Add(c.Column, "is.null")
				continue
			}
			q.Add(c.Column, "eq."+fmt.Sprint(c.Value))
		}
	}
	if len(order) > 0 {
		parts := make([]string, len(order))
		for i, o := range order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		q.Set("order", strings.Join(parts, ","))
	}
	return q
}

func quoteInValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func (s *SupabaseGateway) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.bearer())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func decodeRecords(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return records, nil
}

// =============================================================================
// Storage
// =============================================================================

// SupabaseObjectStore stores objects through the Supabase Storage API using
// the gateway's credentials.
type SupabaseObjectStore struct {
	gw *SupabaseGateway
}

func NewSupabaseObjectStore(gw *SupabaseGateway) *SupabaseObjectStore {
	return &SupabaseObjectStore{gw: gw}
}

func (o *SupabaseObjectStore) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	endpoint := o.gw.url + "/storage/v1/object/" + bucket + "/" + escapePath(path)
	if _, err := o.gw.do(ctx, http.MethodPost, endpoint, body, contentType, map[string]string{
		"x-upsert": "true",
	}); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return o.PublicURL(bucket, path), nil
}

func (o *SupabaseObjectStore) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}
	endpoint := o.gw.url + "/storage/v1/object/" + bucket
	if _, err := o.gw.do(ctx, http.MethodDelete, endpoint, bytes.NewReader(body), "application/json", nil); err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return nil
}

type storageListEntry struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Metadata struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

func (o *SupabaseObjectStore) List(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error) {
	prefix = strings.Trim(prefix, "/")
	body, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  1000,
		"offset": 0,
	})
	if err != nil {
		return nil, err
	}
	endpoint := o.gw.url + "/storage/v1/object/list/" + bucket
	data, err := o.gw.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}

	var raw []storageListEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	entries := make([]ObjectEntry, 0, len(raw))
	for _, e := range raw {
		// Folder placeholders come back without an id
		if e.ID == "" {
			continue
		}
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		entries = append(entries, ObjectEntry{Path: p, Size: e.Metadata.Size})
	}
	return entries, nil
}

// PublicURL returns the public object URL for a bucket path.
func (o *SupabaseObjectStore) PublicURL(bucket, path string) string {
	return o.gw.url + "/storage/v1/object/public/" + bucket + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
