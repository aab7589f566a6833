package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Config はコンテンツストア接続設定。
type Config struct {
	ProjectID  string
	Dataset    string
	Token      string // 書き込みトークン
	APIVersion string // 省略時 "2021-10-21"
	Timeout    time.Duration

	// テスト用。指定時は https://<project>.api.sanity.io/v<ver> の代わりに使う。
	BaseURL string
}

// APIError はストアが2xx以外を返した時のエラー。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sanity: status %d: %s", e.StatusCode, e.Body)
}

// Mutation は mutate エンドポイントに送る1操作。
type Mutation struct {
	CreateIfNotExists any        `json:"createIfNotExists,omitempty"`
	Patch             *PatchSpec `json:"patch,omitempty"`
}

type PatchSpec struct {
	ID           string         `json:"id"`
	IfRevisionID string         `json:"ifRevisionID,omitempty"`
	Set          map[string]any `json:"set,omitempty"`
	Unset        []string       `json:"unset,omitempty"`
}

// CreateIfNotExists は条件付きINSERT。既存_idなら何もしない。
func CreateIfNotExists(doc any) Mutation {
	return Mutation{CreateIfNotExists: doc}
}

// PatchSet は部分更新。ifRev を渡すとリビジョン不一致で409になる（CAS）。
func PatchSet(id string, ifRev string, set map[string]any) Mutation {
	return Mutation{Patch: &PatchSpec{ID: id, IfRevisionID: ifRev, Set: set}}
}

type Client struct {
	hc      *http.Client
	baseURL string
	dataset string
	token   string
	log     *zerolog.Logger
}

func NewClient(cfg Config, logger *zerolog.Logger) (*Client, error) {
	if cfg.ProjectID == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("sanity: project id is required")
	}
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("sanity: dataset is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("sanity: api token is required")
	}

	ver := cfg.APIVersion
	if ver == "" {
		ver = "2021-10-21"
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.sanity.io/v%s", cfg.ProjectID, ver)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: base,
		dataset: cfg.Dataset,
		token:   cfg.Token,
		log:     logger,
	}, nil
}

// Query はGROQクエリを投げて result を decode する。
// params のキーはクエリ内の $name に対応する。
func (c *Client) Query(ctx context.Context, query string, params map[string]any, result any) error {
	q := url.Values{}
	q.Set("query", query)
	for k, v := range params {
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("sanity: encode param %s: %w", k, err)
		}
		q.Set("$"+k, string(enc))
	}

	u := fmt.Sprintf("%s/data/query/%s?%s", c.baseURL, c.dataset, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("sanity: decode query response: %w", err)
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("sanity: decode query result: %w", err)
	}
	return nil
}

// Mutate はミューテーションをまとめてコミットする（visibility=sync）。
func (c *Client) Mutate(ctx context.Context, muts ...Mutation) error {
	payload, err := json.Marshal(map[string]any{"mutations": muts})
	if err != nil {
		return fmt.Errorf("sanity: encode mutations: %w", err)
	}

	u := fmt.Sprintf("%s/data/mutate/%s?visibility=sync&returnIds=false", c.baseURL, c.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

// Ping は疎通確認（healthエンドポイント用）。
func (c *Client) Ping(ctx context.Context) error {
	var ok bool
	return c.Query(ctx, "true", nil, &ok)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sanity: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sanity: read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.log.Error().
			Int("status", res.StatusCode).
			Str("path", req.URL.Path).
			Msg("content store call failed")
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}
