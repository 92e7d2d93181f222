// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package tiptoe

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/lpassig/tiptoe-pir/internal/codec"
	"github.com/lpassig/tiptoe-pir/internal/numeric"
	"github.com/lpassig/tiptoe-pir/internal/simplepir"
)

// snapshot is one immutable refresh epoch's entire published state: both
// databases (the embedding database stored pre-transposed so Answer's
// plain D·u becomes the D_emb^T·u the score round needs — see
// SPEC_FULL.md), their hints, and the record count reported by
// /db-config. Readers hold a *snapshot
// obtained from Server.current and never block a concurrent refresh
// (spec.md §5 "single immutable snapshot behind an atomic pointer").
type snapshot struct {
	id uint64

	embParams simplepir.Params
	embD      *numeric.Matrix // D_emb^T, square N_emb x N_emb
	embHint   simplepir.ServerHint
	embClient *numeric.Matrix

	txtParams simplepir.Params
	txtD      *numeric.Matrix // D_txt, square N_txt x N_txt
	txtHint   simplepir.ServerHint
	txtClient *numeric.Matrix

	recordCount uint64
}

// BaseParams fixes the LWE parameters that stay constant across refreshes;
// only N (the square side) changes per database per epoch, since it is a
// function of the corpus size.
type BaseParams struct {
	SecretDim  uint64
	ModPower   uint64
	Sigma      float64
	Compressed bool
}

// Server holds the refresh-epoch-versioned (D_emb, D_txt, hints) bundle and
// the machinery to rebuild it. Generalises vectorBackend
// (cachedMatrix/cachedConfig behind matrixLock) from one cached matrix to
// one cached two-database snapshot published via atomic pointer swap
// rather than a read/write mutex, per spec.md §5's RCU requirement.
type Server struct {
	logger hclog.Logger
	corpus CorpusSource
	base   BaseParams

	current atomic.Pointer[snapshot]
	nextID  atomic.Uint64
	buildMu sync.Mutex // single-writer: only one refresh runs at a time
}

// NewServer constructs a Server with no published epoch yet. Until the
// first successful Refresh, Config reports Ready=false (spec.md §4.7,
// §7 "state-not-ready").
func NewServer(base BaseParams, corpus CorpusSource, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{logger: logger, corpus: corpus, base: base}
}

// Refresh rebuilds both databases from the corpus and, on success,
// publishes the new snapshot with a single pointer swap. A rebuild
// failure — corpus fetch error — leaves the previous epoch installed and
// logs the error rather than returning a half-built snapshot (spec.md
// §4.7 "a rebuild failure leaves the previous epoch installed"). An empty
// corpus is not an error: the server simply declines to publish, matching
// spec.md §8's "empty record set: server refuses to publish an epoch".
func (s *Server) Refresh() error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	records, err := s.corpus.Fetch()
	if err != nil {
		s.logger.Error("refresh: corpus fetch failed, keeping previous epoch", "error", err)
		return simplepir.NewError(simplepir.ErrKindRefresh, "Refresh", err)
	}
	if len(records) == 0 {
		s.logger.Warn("refresh: empty corpus, declining to publish an epoch")
		return nil
	}

	texts := make([]string, len(records))
	embeddings := make([][]float64, len(records))
	for i, r := range records {
		texts[i] = r.Text
		embeddings[i] = r.Embedding
	}

	embParams := simplepir.Params{SecretDim: s.base.SecretDim, ModPower: s.base.ModPower, Sigma: s.base.Sigma, Compressed: s.base.Compressed}
	txtParams := embParams

	em, err := codec.EncodeEmbeddingMatrix(embeddings, embParams.P())
	if err != nil {
		s.logger.Error("refresh: encode embedding matrix failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: %w", err)
	}
	sm, err := codec.EncodeStringMatrix(texts)
	if err != nil {
		s.logger.Error("refresh: encode string matrix failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: %w", err)
	}

	embParams.N = em.N
	txtParams.N = sm.N

	if err := simplepir.SelfTest(embParams); err != nil {
		s.logger.Error("refresh: embedding engine self-test failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: self-test: %w", err)
	}
	if err := simplepir.SelfTest(txtParams); err != nil {
		s.logger.Error("refresh: text engine self-test failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: self-test: %w", err)
	}

	embDT := em.D.Transpose()
	embHint, embClient, err := simplepir.Setup(embDT, embParams)
	if err != nil {
		s.logger.Error("refresh: embedding setup failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: %w", err)
	}
	txtHint, txtClient, err := simplepir.Setup(sm.Records, txtParams)
	if err != nil {
		s.logger.Error("refresh: text setup failed, keeping previous epoch", "error", err)
		return fmt.Errorf("tiptoe: refresh: %w", err)
	}

	snap := &snapshot{
		id:          s.nextID.Add(1),
		embParams:   embParams,
		embD:        embDT,
		embHint:     embHint,
		embClient:   embClient,
		txtParams:   txtParams,
		txtD:        sm.Records,
		txtHint:     txtHint,
		txtClient:   txtClient,
		recordCount: uint64(len(records)),
	}
	s.current.Store(snap)
	s.logger.Info("refresh: published new epoch", "epoch", snap.id, "records", snap.recordCount)
	return nil
}

// Config returns the current epoch's public shape and hints. Ready is
// false until the first Refresh publishes a snapshot (spec.md §7
// "state-not-ready ... db_side_len = null").
func (s *Server) Config() DBConfig {
	snap := s.current.Load()
	if snap == nil {
		return DBConfig{Ready: false}
	}
	return DBConfig{
		EpochID:         snap.id,
		ModPower:        snap.txtParams.ModPower,
		SecretDimension: snap.txtParams.SecretDim,
		PlainMod:        snap.txtParams.P(),
		DBSideLenText:   snap.txtParams.N,
		DBSideLenEmb:    snap.embParams.N,
		RecordCount:     snap.recordCount,
		ServerHintEmb:   snap.embHint,
		ServerHintTxt:   snap.txtHint,
		ClientHintEmb:   snap.embClient,
		ClientHintTxt:   snap.txtClient,
		Ready:           true,
	}
}

// AnswerEmbedding runs the server side of the score round: a = D_emb^T·u.
func (s *Server) AnswerEmbedding(queryCipher []uint64) ([]uint64, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, simplepir.NewError(simplepir.ErrKindNotReady, "AnswerEmbedding", nil)
	}
	return simplepir.Answer(snap.embD, queryCipher)
}

// AnswerText runs the server side of the fetch round: a = D_txt·u.
func (s *Server) AnswerText(queryCipher []uint64) ([]uint64, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, simplepir.NewError(simplepir.ErrKindNotReady, "AnswerText", nil)
	}
	return simplepir.Answer(snap.txtD, queryCipher)
}
