// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package tiptoe

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileCorpus reads a precomputed corpus (text + embedding pairs) from a
// JSON file. tiptoe-rs splits embedding computation into a standalone
// embedding_server process and treats the retrieval server as a consumer
// of its output (original_source's src/bin/embedding_server.rs); this
// package makes the same split by
// taking embeddings as already-computed input rather than calling an
// embedding model itself, which is out of this module's scope.
type FileCorpus struct {
	Path string
}

// corpusEntry is the on-disk shape: one object per record.
type corpusEntry struct {
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

func (f FileCorpus) Fetch() ([]Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("tiptoe: read corpus %s: %w", f.Path, err)
	}
	var entries []corpusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("tiptoe: parse corpus %s: %w", f.Path, err)
	}
	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = Record{Text: e.Text, Embedding: e.Embedding}
	}
	return records, nil
}
