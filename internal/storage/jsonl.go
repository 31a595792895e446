package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"arbcore/internal/model"
)

// JsonlPoolStore keeps pool metadata as one JSON object per line.
type JsonlPoolStore struct {
	path string
	mu   sync.Mutex
}

func NewJsonlPoolStore(path string) *JsonlPoolStore {
	return &JsonlPoolStore{path: path}
}

// LoadPools returns the stored pools for a chain. A missing file is empty.
func (s *JsonlPoolStore) LoadPools(_ context.Context, chainID uint64) ([]model.PoolMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]model.PoolMeta, 0, len(all))
	for _, meta := range all {
		if meta.ChainID == chainID {
			out = append(out, meta)
		}
	}
	return out, nil
}

// SavePools merges pools into the file, replacing entries with the same
// chain and address, and rewrites it atomically.
func (s *JsonlPoolStore) SavePools(_ context.Context, pools []model.PoolMeta) error {
	if len(pools) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAll()
	if err != nil {
		return err
	}
	merged := make(map[string]model.PoolMeta, len(existing)+len(pools))
	for _, meta := range existing {
		merged[poolKey(meta)] = meta
	}
	for _, meta := range pools {
		merged[poolKey(meta)] = meta
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create pool store dir: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open pool store tmp: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, key := range keys {
		line, err := json.Marshal(merged[key])
		if err != nil {
			file.Close()
			return fmt.Errorf("marshal pool meta: %w", err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			file.Close()
			return fmt.Errorf("write pool meta: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush pool store: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close pool store tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace pool store: %w", err)
	}
	return nil
}

func (s *JsonlPoolStore) readAll() ([]model.PoolMeta, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open pool store: %w", err)
	}
	defer file.Close()

	var out []model.PoolMeta
	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var meta model.PoolMeta
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			return nil, fmt.Errorf("parse pool store line %d: %w", lineNo, err)
		}
		out = append(out, meta)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pool store: %w", err)
	}
	return out, nil
}

func poolKey(meta model.PoolMeta) string {
	return fmt.Sprintf("%d:%s", meta.ChainID, strings.ToLower(meta.Pool))
}
