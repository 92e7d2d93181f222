// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi implements the JSON-over-HTTP wire contract spec.md §6
// fixes: GET /db-config, POST /query/embedding, POST /query/text. Handler
// wraps an *tiptoe.Server behind net/http; Client implements
// tiptoe.RemoteDatabase over that same contract for a separate process.
package httpapi

import (
	"github.com/lpassig/tiptoe-pir/internal/numeric"
	"github.com/lpassig/tiptoe-pir/internal/simplepir"
	"github.com/lpassig/tiptoe-pir/internal/tiptoe"
)

// dbConfigResponse mirrors spec.md §6's GET /db-config shape, plus two
// added fields: db_side_len_emb (the embedding database's side, since
// db_side_len carries the text database's) and record_count (see
// tiptoe.DBConfig for why the client needs it). db_side_len is emitted as
// null (a nil pointer) until the server completes its first refresh, per
// spec.md §7 "state-not-ready".
type dbConfigResponse struct {
	ModPower        uint64        `json:"mod_power"`
	SecretDimension uint64        `json:"secret_dimension"`
	PlainMod        uint64        `json:"plain_mod"`
	DBSideLen       *uint64       `json:"db_side_len"`
	DBSideLenEmb    *uint64       `json:"db_side_len_emb"`
	RecordCount     uint64        `json:"record_count"`
	ServerHints     [2]string     `json:"server_hints"` // [emb, txt], hex-encoded 32-byte seeds
	ClientHints     [2][][]uint64 `json:"client_hints"` // [H_emb_rows, H_txt_rows]
}

// queryRequest is the shared body shape for both /query/embedding and
// /query/text: a single ciphertext vector. Integers are emitted as
// numeric JSON tokens; decoding also accepts decimal strings (spec.md §6:
// "implementations MUST accept both").
type queryRequest struct {
	QueryCipher []flexUint64 `json:"query_cipher"`
}

// queryResponse is the shared body shape for both query endpoints' reply.
type queryResponse struct {
	Answer []uint64 `json:"answer"`
}

// errorResponse is returned with a 4xx status for any parameter/validation
// failure, tagged with the simplepir.ErrorKind that produced it (spec.md
// §7: "all parse/validation failures produce a 4xx with an error kind
// tag").
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toConfigResponse(cfg tiptoe.DBConfig) dbConfigResponse {
	resp := dbConfigResponse{
		ModPower:        cfg.ModPower,
		SecretDimension: cfg.SecretDimension,
		PlainMod:        cfg.PlainMod,
		RecordCount:     cfg.RecordCount,
	}
	if !cfg.Ready {
		return resp
	}
	side := cfg.DBSideLenText
	sideEmb := cfg.DBSideLenEmb
	resp.DBSideLen = &side
	resp.DBSideLenEmb = &sideEmb
	resp.ServerHints = [2]string{hexSeed(cfg.ServerHintEmb), hexSeed(cfg.ServerHintTxt)}
	resp.ClientHints = [2][][]uint64{matrixRows(cfg.ClientHintEmb), matrixRows(cfg.ClientHintTxt)}
	return resp
}

func matrixRows(m *numeric.Matrix) [][]uint64 {
	if m == nil {
		return nil
	}
	rows := make([][]uint64, m.Rows())
	for i := range rows {
		rows[i] = m.Row(uint64(i))
	}
	return rows
}

func fromConfigResponse(resp dbConfigResponse) (tiptoe.DBConfig, error) {
	cfg := tiptoe.DBConfig{
		ModPower:        resp.ModPower,
		SecretDimension: resp.SecretDimension,
		PlainMod:        resp.PlainMod,
		RecordCount:     resp.RecordCount,
	}
	if resp.DBSideLen == nil {
		return cfg, nil
	}
	cfg.Ready = true
	cfg.DBSideLenText = *resp.DBSideLen
	if resp.DBSideLenEmb != nil {
		cfg.DBSideLenEmb = *resp.DBSideLenEmb
	}

	embSeed, err := seedFromHex(resp.ServerHints[0])
	if err != nil {
		return tiptoe.DBConfig{}, err
	}
	txtSeed, err := seedFromHex(resp.ServerHints[1])
	if err != nil {
		return tiptoe.DBConfig{}, err
	}
	cfg.ServerHintEmb = simplepir.ServerHint{Seed: embSeed}
	cfg.ServerHintTxt = simplepir.ServerHint{Seed: txtSeed}
	cfg.ClientHintEmb = matrixFromRows(resp.ClientHints[0])
	cfg.ClientHintTxt = matrixFromRows(resp.ClientHints[1])
	return cfg, nil
}

func matrixFromRows(rows [][]uint64) *numeric.Matrix {
	if len(rows) == 0 {
		return numeric.NewMatrix(0, 0)
	}
	m := numeric.NewMatrix(uint64(len(rows)), uint64(len(rows[0])))
	for i, row := range rows {
		for j, v := range row {
			m.Set(uint64(i), uint64(j), v)
		}
	}
	return m
}
