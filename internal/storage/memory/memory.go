// Package memory is a process-local ledger store for development and tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"smartasset/internal/core"
	"smartasset/internal/ledger"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	catID  int64
	cats   []core.Category
	items  []core.Transaction
}

var _ ledger.Store = (*Store)(nil)

func New(categories []string) *Store {
	s := &Store{}
	for _, name := range dedupe(categories) {
		s.catID++
		s.cats = append(s.cats, core.Category{ID: s.catID, Name: name})
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back to
// the default list when the file is missing or empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = ledger.DefaultCategories
	}
	return New(cats)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// AppendBatch stores txs and returns their ids.
func (s *Store) AppendBatch(_ context.Context, txs []core.Transaction) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		s.nextID++
		tx.ID = s.nextID
		tx.CreatedAt = now
		s.items = append(s.items, tx)
		ids = append(ids, tx.ID)
	}
	return ids, nil
}

// ListAll returns a copy ordered by date then id, newest first.
func (s *Store) ListAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.items...)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Transaction{}, ledger.ErrNotFound
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) Update(_ context.Context, id int64, patch core.TransactionPatch) error {
	if patch.IsEmpty() {
		return core.ErrEmptyPatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ledger.ErrNotFound
	}
	s.items[i] = patch.Apply(s.items[i])
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) AddCategory(_ context.Context, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if strings.EqualFold(c.Name, name) {
			return core.Category{}, ledger.ErrDuplicateCategory
		}
	}
	s.catID++
	c := core.Category{ID: s.catID, Name: name}
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if strings.EqualFold(c.Name, name) {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) indexOf(id int64) int {
	for i, tx := range s.items {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and case-insensitive repeats, keeping first occurrences in order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
