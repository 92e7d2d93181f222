// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package tiptoe orchestrates the two-round Tiptoe retrieval protocol on
// top of internal/simplepir: a refresh-epoch-versioned server holding an
// embeddings database and a text database, and a client that runs the
// score round followed by the fetch round.
//
// Grounded on vectorBackend (one struct owning cached
// derived state behind a lock, generalised here from "one cached matrix"
// to "one cached two-database snapshot") and on
// allinbits-labs/projects/sidechain/internal/indexer/epoch.go's
// EpochDetector for the ticker-driven republish pattern.
package tiptoe

import (
	"github.com/lpassig/tiptoe-pir/internal/numeric"
	"github.com/lpassig/tiptoe-pir/internal/simplepir"
)

// Record is one corpus entry: its text and the embedding computed from it.
// The two databases are built from parallel slices of Record so that
// column i of D_emb and column i of D_txt always describe the same entry
// (spec.md §4.6: "D_txt: ... shares record ordering with D_emb").
type Record struct {
	Text      string
	Embedding []float64
}

// CorpusSource supplies the records a refresh should build its databases
// from. The implementations in this package are StaticCorpus (a fixed
// in-memory slice) and FileCorpus (a JSON file of precomputed text and
// embedding pairs); neither computes embeddings itself.
type CorpusSource interface {
	Fetch() ([]Record, error)
}

// StaticCorpus is the simplest CorpusSource: a fixed slice of records,
// useful for tests and for small, rarely-changing corpora.
type StaticCorpus []Record

func (c StaticCorpus) Fetch() ([]Record, error) { return []Record(c), nil }

// DBConfig is what a client needs to start a query round: the epoch's
// shape and the public hints for both databases. Mirrors spec.md §6's
// GET /db-config response, plus a record_count field the wire contract
// leaves implicit in the array lengths but that this package's client
// needs explicitly to bound its argmax search over the embedding round's
// padding rows.
type DBConfig struct {
	EpochID         uint64
	ModPower        uint64
	SecretDimension uint64
	PlainMod        uint64
	DBSideLenText   uint64 // null (reported as 0 + Ready=false) until the first refresh
	DBSideLenEmb    uint64
	RecordCount     uint64
	ServerHintEmb   simplepir.ServerHint
	ServerHintTxt   simplepir.ServerHint
	ClientHintEmb   *numeric.Matrix
	ClientHintTxt   *numeric.Matrix
	Ready           bool
}
