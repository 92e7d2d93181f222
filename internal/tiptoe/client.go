// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package tiptoe

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lpassig/tiptoe-pir/internal/codec"
	"github.com/lpassig/tiptoe-pir/internal/lwe"
	"github.com/lpassig/tiptoe-pir/internal/simplepir"
)

// RemoteDatabase is the capability set a client dispatches a query
// through: params (fetch the current epoch's shape/hints) and respond
// (answer a query ciphertext). Modeled as spec.md §9 asks — "a single
// trait/interface with two concrete variants; the client holds a variant
// tag and dispatches statically per construction" — with a Local
// implementation (direct calls into a co-resident Server, for tests and
// single-process deployments) and internal/httpapi providing the Remote
// (HTTP) implementation. The "update"/"hint" capabilities §9 also lists
// are server-only concerns (Server.Refresh, and hints travel as part of
// Params here) rather than client-dispatched ones.
type RemoteDatabase interface {
	Params() (DBConfig, error)
	RespondEmbedding(queryCipher []uint64) ([]uint64, error)
	RespondText(queryCipher []uint64) ([]uint64, error)
}

// LocalDatabase implements RemoteDatabase by calling directly into a
// co-resident Server, with no network hop — the "local" variant of
// spec.md §9's capability set.
type LocalDatabase struct {
	Server *Server
}

func (l LocalDatabase) Params() (DBConfig, error) { return l.Server.Config(), nil }
func (l LocalDatabase) RespondEmbedding(u []uint64) ([]uint64, error) {
	return l.Server.AnswerEmbedding(u)
}
func (l LocalDatabase) RespondText(u []uint64) ([]uint64, error) {
	return l.Server.AnswerText(u)
}

// EmbedFunc computes a quantisable embedding vector for a piece of query
// text. Supplied by the caller so this package stays independent of any
// particular embedding model.
type EmbedFunc func(text string) ([]float64, error)

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithScoreFloor sets a minimum signed round-1 score below which Ask
// aborts rather than fetching a record it has low confidence is relevant
// — a supplemented feature beyond the base protocol (spec.md §4.6: "the
// caller may choose to abort" when the top score is below a floor; the
// PIR layer itself has no opinion on relevance, so this is an opt-in knob,
// not a default).
func WithScoreFloor(floor int64) ClientOption {
	return func(c *Client) { c.scoreFloor = &floor }
}

// Client runs the two-round Tiptoe protocol against a RemoteDatabase. It
// holds no state across calls to Ask beyond a hint cache keyed by epoch
// id — spec.md §4.8: "a short-lived object holding refresh-epoch hints
// (cached by epoch id) ... nothing persists across queries."
type Client struct {
	db         RemoteDatabase
	embed      EmbedFunc
	hintCache  *lru.Cache[uint64, DBConfig]
	scoreFloor *int64
}

// NewClient constructs a Client. hintCacheSize bounds how many distinct
// epochs' hints are retained at once (spec.md §4.8's per-epoch hint
// cache); grounded on allinbits-labs' use of hashicorp/golang-lru/v2 for
// exactly this kind of keyed, bounded cache.
func NewClient(db RemoteDatabase, embed EmbedFunc, hintCacheSize int, opts ...ClientOption) (*Client, error) {
	cache, err := lru.New[uint64, DBConfig](hintCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{db: db, embed: embed, hintCache: cache}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State is the per-query protocol state spec.md §4.3 defines: INIT ->
// AWAITING_ANSWER -> RECOVERED | DECRYPT_FAIL. Ask drives a query through
// this machine twice (once per round) and never retries internally — a
// caller observing an error re-enters from INIT with a fresh Ask call.
type State int

const (
	StateInit State = iota
	StateAwaitingAnswer
	StateRecovered
	StateDecryptFail
)

// ErrBelowScoreFloor is returned by Ask when WithScoreFloor is set and the
// round-1 top score doesn't clear it.
type ErrBelowScoreFloor struct {
	Score int64
	Floor int64
}

func (e *ErrBelowScoreFloor) Error() string {
	return "tiptoe: round-1 top score below floor"
}

func (c *Client) config() (DBConfig, error) {
	cfg, err := c.db.Params()
	if err != nil {
		return DBConfig{}, err
	}
	if !cfg.Ready {
		return DBConfig{}, simplepir.NewError(simplepir.ErrKindNotReady, "Client.Ask", nil)
	}
	if cached, ok := c.hintCache.Get(cfg.EpochID); ok {
		return cached, nil
	}
	c.hintCache.Add(cfg.EpochID, cfg)
	return cfg, nil
}

// Ask runs the full two-round protocol: embed the query, score every
// record against it (round 1), pick the best match, then fetch that
// record's text without revealing the index to the server (round 2).
func (c *Client) Ask(text string) (string, error) {
	cfg, err := c.config()
	if err != nil {
		return "", err
	}

	v, err := c.embed(text)
	if err != nil {
		return "", err
	}
	vHat, err := codec.QuantizeEmbedding(v, cfg.PlainMod)
	if err != nil {
		return "", err
	}
	probe := make([]uint64, cfg.DBSideLenEmb)
	copy(probe, vHat)

	embParams := simplepir.Params{SecretDim: cfg.SecretDimension, ModPower: cfg.ModPower, N: cfg.DBSideLenEmb, Sigma: lwe.DefaultSigma}
	cs1, u1, err := simplepir.QueryVector(probe, embParams, cfg.ServerHintEmb)
	if err != nil {
		return "", err
	}

	a1, err := c.db.RespondEmbedding(u1)
	if err != nil {
		return "", err
	}
	scores, err := simplepir.RecoverRow(cs1, cfg.ClientHintEmb, a1)
	if err != nil {
		return "", err
	}

	best, bestScore := argmaxSigned(scores, cfg.RecordCount, cfg.PlainMod)
	if c.scoreFloor != nil && bestScore < *c.scoreFloor {
		return "", &ErrBelowScoreFloor{Score: bestScore, Floor: *c.scoreFloor}
	}

	txtParams := simplepir.Params{SecretDim: cfg.SecretDimension, ModPower: cfg.ModPower, N: cfg.DBSideLenText, Sigma: lwe.DefaultSigma}
	cs2, u2, err := simplepir.Query(best, txtParams, cfg.ServerHintTxt)
	if err != nil {
		return "", err
	}
	a2, err := c.db.RespondText(u2)
	if err != nil {
		return "", err
	}
	column, err := simplepir.RecoverRow(cs2, cfg.ClientHintTxt, a2)
	if err != nil {
		return "", err
	}

	record, err := codec.DecodeColumn(column)
	if err != nil {
		return "", simplepir.NewError(simplepir.ErrKindDecryptGarble, "Client.Ask", err)
	}
	return record, nil
}

// argmaxSigned finds the index of the largest score among the first limit
// entries, reinterpreted as signed integers (spec.md §9: argmax, fixed —
// see SPEC_FULL.md §9 for the rationale). Ties are broken by lowest index.
func argmaxSigned(scores []uint64, limit uint64, p uint64) (uint64, int64) {
	var bestIdx uint64
	bestVal := codec.ScoreToSigned(scores[0], p)
	n := limit
	if n > uint64(len(scores)) {
		n = uint64(len(scores))
	}
	for i := uint64(1); i < n; i++ {
		v := codec.ScoreToSigned(scores[i], p)
		if v > bestVal {
			bestVal = v
			bestIdx = i
		}
	}
	return bestIdx, bestVal
}
