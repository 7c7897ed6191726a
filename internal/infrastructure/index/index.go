// Package index keeps a per-user, in-memory search index over transaction
// text. An index is built on first query, expires after its TTL, and is
// dropped explicitly when the user's ledger changes.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/patrickmn/go-cache"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// DefaultLimit is the number of hits returned when limit is not positive.
const DefaultLimit = 5

// MinScore is the lowest fuzzy score reported as a hit.
const MinScore = 0.6

// ErrClosed is returned by a closed index.
var ErrClosed = errors.New("index closed")

// Source loads the transactions an index is built from.
type Source interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
}

// Hit is one search result.
type Hit struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Score       float64             `json:"score"`
}

type entry struct {
	txn    *ledger.Transaction
	text   string
	tokens []string
}

type userIndex struct {
	entries []entry
}

// TransactionIndex is safe for concurrent use.
type TransactionIndex struct {
	source Source
	cache  *cache.Cache
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates an index whose per-user entries live for ttl.
func New(source Source, ttl time.Duration, logger *slog.Logger) *TransactionIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionIndex{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Build (re)loads the index for one user.
func (x *TransactionIndex) Build(ctx context.Context, userID int64) error {
	if x.isClosed() {
		return ErrClosed
	}
	txns, err := x.source.ListTransactions(ctx, ledger.TransactionFilter{UserID: userID, Newest: true})
	if err != nil {
		return fmt.Errorf("failed to load transactions for index: %w", err)
	}

	idx := &userIndex{entries: make([]entry, 0, len(txns))}
	for _, t := range txns {
		text := strings.ToLower(strings.Join(nonEmpty(t.Name, t.MerchantName, t.Category), " "))
		idx.entries = append(idx.entries, entry{txn: t, text: text, tokens: tokenize(text)})
	}
	x.cache.SetDefault(key(userID), idx)
	x.logger.Debug("built transaction index", "user_id", userID, "entries", len(idx.entries))
	return nil
}

// Search returns the best matches for query, highest score first, newest
// first among equal scores. An unbuilt or expired index is rebuilt.
func (x *TransactionIndex) Search(ctx context.Context, userID int64, query string, limit int) ([]Hit, error) {
	if x.isClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Hit{}, nil
	}

	cached, ok := x.cache.Get(key(userID))
	if !ok {
		if err := x.Build(ctx, userID); err != nil {
			return nil, err
		}
		cached, _ = x.cache.Get(key(userID))
	}
	idx, _ := cached.(*userIndex)
	if idx == nil {
		return []Hit{}, nil
	}

	queryTokens := tokenize(q)
	hits := []Hit{}
	for i, e := range idx.entries {
		score := scoreEntry(q, queryTokens, e)
		if score < MinScore {
			continue
		}
		hits = append(hits, Hit{Transaction: idx.entries[i].txn, Score: score})
	}
	// entries are already newest first; a stable sort keeps that among ties
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Invalidate drops one user's index.
func (x *TransactionIndex) Invalidate(userID int64) {
	x.cache.Delete(key(userID))
}

// Close drops every index. Later calls return ErrClosed.
func (x *TransactionIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.cache.Flush()
	return nil
}

func (x *TransactionIndex) isClosed() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.closed
}

// scoreEntry is 1 for a substring hit, otherwise the mean over query tokens
// of the best Levenshtein ratio against any entry token.
func scoreEntry(q string, queryTokens []string, e entry) float64 {
	if strings.Contains(e.text, q) {
		return 1
	}
	if len(queryTokens) == 0 || len(e.tokens) == 0 {
		return 0
	}
	total := 0.0
	for _, qt := range queryTokens {
		best := 0.0
		for _, et := range e.tokens {
			if r := ratio(qt, et); r > best {
				best = r
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

func ratio(a, b string) float64 {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
