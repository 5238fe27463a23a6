// internal/logstore/store.go
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"nutrilog/internal/gateway"
	"nutrilog/internal/logging"
	"nutrilog/internal/models"
)

const (
	// MaxSuggestions caps Suggest results.
	MaxSuggestions = 5

	ClearPrompt = "Clear all logs?"
)

// Persister is the durable slot the log is written to on every mutation.
type Persister interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, data []byte) error
}

// Confirmer gates destructive operations.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always and Never are fixed confirmers.
var (
	Always Confirmer = ConfirmFunc(func(string) bool { return true })
	Never  Confirmer = ConfirmFunc(func(string) bool { return false })
)

type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAdded     Outcome = "added"
	OutcomeNoResults Outcome = "no_results"
	OutcomeFailed    Outcome = "failed"
)

// SearchResult describes how a Search settled.
type SearchResult struct {
	Query   string                 `json:"query"`
	Outcome Outcome                `json:"outcome"`
	Added   []models.NutritionItem `json:"added"`
}

// Store owns the ordered log, newest first.
type Store struct {
	mu        sync.Mutex
	items     []models.NutritionItem
	query     string
	searching int

	persister Persister
	gateway   gateway.Gateway
	log       *logging.Logger
	newID     func(name string) string
}

type Option func(*Store)

func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func(name string) string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Open builds a store and loads the persisted snapshot. A missing or
// unreadable snapshot yields an empty log; only storage errors fail.
func Open(ctx context.Context, p Persister, gw gateway.Gateway, opts ...Option) (*Store, error) {
	s := &Store{
		persister: p,
		gateway:   gw,
		log:       logging.Nop(),
		newID:     func(string) string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	data, ok, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load log: %w", err)
	}
	if !ok {
		s.items = []models.NutritionItem{}
		return s, nil
	}

	var items []models.NutritionItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("discarding unreadable log snapshot", "error", err, "bytes", len(data))
		items = nil
	}
	s.items = dedupe(items)
	s.log.Debug("log loaded", "items", len(s.items))
	return s, nil
}

// dedupe drops entries with a repeated or empty id, keeping the first.
func dedupe(items []models.NutritionItem) []models.NutritionItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.NutritionItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (s *Store) SetQuery(text string) {
	s.mu.Lock()
	s.query = text
	s.mu.Unlock()
}

func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Searching reports whether any lookup is outstanding.
func (s *Store) Searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searching > 0
}

// Items returns a copy of the log, newest first.
func (s *Store) Items() []models.NutritionItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NutritionItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Totals() models.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Sum(s.items)
}

// Search resolves override, or the active query when override is blank,
// and prepends the returned batch. Gateway failures leave the log as is
// and are reported only through the outcome; the returned error is
// reserved for persistence failures.
func (s *Store) Search(ctx context.Context, override string) (SearchResult, error) {
	s.mu.Lock()
	q := strings.TrimSpace(override)
	if q == "" {
		q = strings.TrimSpace(s.query)
	}
	if q == "" {
		s.mu.Unlock()
		return SearchResult{Outcome: OutcomeSkipped}, nil
	}
	s.searching++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.searching--
		s.mu.Unlock()
	}()

	res := SearchResult{Query: q}
	facts, err := s.gateway.Lookup(ctx, q)
	if err != nil {
		s.log.Warn("nutrition lookup failed", "query", q, "error", err)
		res.Outcome = OutcomeFailed
		return res, nil
	}
	if len(facts) == 0 {
		res.Outcome = OutcomeNoResults
		return res, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]models.NutritionItem, 0, len(facts))
	for _, fact := range facts {
		batch = append(batch, models.NewItem(s.uniqueID(fact.Name, batch), fact))
	}

	next := make([]models.NutritionItem, 0, len(batch)+len(s.items))
	next = append(next, batch...)
	next = append(next, s.items...)
	if err := s.commit(ctx, next); err != nil {
		return SearchResult{Query: q, Outcome: OutcomeFailed}, err
	}
	s.query = ""

	s.log.Info("food logged", "query", q, "added", len(batch), "items", len(s.items))
	res.Outcome = OutcomeAdded
	res.Added = batch
	return res, nil
}

// uniqueID asks newID until it yields an id absent from the log and the
// pending batch. Callers hold mu.
func (s *Store) uniqueID(name string, pending []models.NutritionItem) string {
	for {
		id := s.newID(name)
		if id != "" && !containsID(s.items, id) && !containsID(pending, id) {
			return id
		}
	}
}

func containsID(items []models.NutritionItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Remove deletes the item with id. An unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, item := range s.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := make([]models.NutritionItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	s.log.Info("food removed", "id", id, "items", len(s.items))
	return true, nil
}

// ClearAll empties the log once c confirms. It reports whether the log was
// cleared.
func (s *Store) ClearAll(ctx context.Context, c Confirmer) (bool, error) {
	if c == nil || !c.Confirm(ClearPrompt) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, []models.NutritionItem{}); err != nil {
		return false, err
	}
	s.log.Info("log cleared")
	return true, nil
}

// Suggest returns up to MaxSuggestions distinct logged names containing
// partial, ignoring case, in log order.
func (s *Store) Suggest(partial string) []string {
	out := []string{}
	if partial == "" {
		return out
	}
	needle := strings.ToLower(partial)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, item := range s.items {
		if _, dup := seen[item.Name]; dup {
			continue
		}
		seen[item.Name] = struct{}{}
		if !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		out = append(out, item.Name)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// commit persists next and installs it only if the write succeeds.
// Callers hold mu.
func (s *Store) commit(ctx context.Context, next []models.NutritionItem) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	if err := s.persister.Save(ctx, data); err != nil {
		s.log.Error("failed to persist log", "error", err)
		return fmt.Errorf("failed to persist log: %w", err)
	}
	s.items = next
	return nil
}
