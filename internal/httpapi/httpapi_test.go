// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/lpassig/tiptoe-pir/internal/lwe"
	"github.com/lpassig/tiptoe-pir/internal/tiptoe"
)

func embed(dim int) tiptoe.EmbedFunc {
	return func(text string) ([]float64, error) {
		v := make([]float64, dim)
		for i, b := range []byte(text) {
			v[i%dim] += float64(b)
		}
		return v, nil
	}
}

func TestDBConfigReportsNotReadyBeforeRefresh(t *testing.T) {
	server := tiptoe.NewServer(tiptoe.BaseParams{SecretDim: 16, ModPower: 17, Sigma: lwe.DefaultSigma}, tiptoe.StaticCorpus(nil), nil)
	h := NewHandler(server, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	client := NewClient(ts.URL, nil)
	cfg, err := client.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if cfg.Ready {
		t.Error("expected Ready=false before any refresh")
	}
}

func TestEndToEndQueryOverHTTP(t *testing.T) {
	embedFn := embed(16)
	texts := []string{"hello world", "goodbye"}
	records := make([]tiptoe.Record, len(texts))
	for i, txt := range texts {
		v, _ := embedFn(txt)
		records[i] = tiptoe.Record{Text: txt, Embedding: v}
	}

	server := tiptoe.NewServer(tiptoe.BaseParams{SecretDim: 16, ModPower: 17, Sigma: lwe.DefaultSigma}, tiptoe.StaticCorpus(records), nil)
	if err := server.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	h := NewHandler(server, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	remote := NewClient(ts.URL, nil)
	client, err := tiptoe.NewClient(remote, embedFn, 4)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.Ask("hello world")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Ask() = %q, want %q", got, "hello world")
	}
}

func TestQueryEndpointRejectsWrongMethod(t *testing.T) {
	server := tiptoe.NewServer(tiptoe.BaseParams{SecretDim: 16, ModPower: 17, Sigma: lwe.DefaultSigma}, tiptoe.StaticCorpus(nil), nil)
	h := NewHandler(server, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/query/text")
	if err != nil {
		t.Fatalf("GET /query/text: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestFlexUint64AcceptsStringAndNumber(t *testing.T) {
	var a, b flexUint64
	if err := a.UnmarshalJSON([]byte(`42`)); err != nil {
		t.Fatalf("numeric: %v", err)
	}
	if err := b.UnmarshalJSON([]byte(`"42"`)); err != nil {
		t.Fatalf("string: %v", err)
	}
	if a != b {
		t.Errorf("a=%d b=%d, want equal", a, b)
	}
}
