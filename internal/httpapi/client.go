// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lpassig/tiptoe-pir/internal/tiptoe"
)

// Client implements tiptoe.RemoteDatabase over the JSON/HTTP wire contract
// — the "remote" variant of spec.md §9's capability set, dispatched
// statically alongside tiptoe.LocalDatabase by whichever constructor a
// caller chose at Client-construction time.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds an httpapi.Client against a running server's base URL
// (e.g. "http://localhost:8080"). A nil httpClient defaults to
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}
}

var _ tiptoe.RemoteDatabase = (*Client)(nil)

func (c *Client) Params() (tiptoe.DBConfig, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/db-config")
	if err != nil {
		return tiptoe.DBConfig{}, fmt.Errorf("httpapi: GET /db-config: %w", err)
	}
	defer resp.Body.Close()

	var body dbConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return tiptoe.DBConfig{}, fmt.Errorf("httpapi: decode /db-config response: %w", err)
	}
	return fromConfigResponse(body)
}

func (c *Client) RespondEmbedding(queryCipher []uint64) ([]uint64, error) {
	return c.postQuery("/query/embedding", queryCipher)
}

func (c *Client) RespondText(queryCipher []uint64) ([]uint64, error) {
	return c.postQuery("/query/text", queryCipher)
}

func (c *Client) postQuery(path string, queryCipher []uint64) ([]uint64, error) {
	reqBody := struct {
		QueryCipher []uint64 `json:"query_cipher"`
	}{QueryCipher: queryCipher}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Post(c.BaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpapi: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("httpapi: POST %s: %s (%s)", path, errResp.Error, errResp.Kind)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpapi: decode %s response: %w", path, err)
	}
	return out.Answer, nil
}
