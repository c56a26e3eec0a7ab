package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/frontier/internal/contracts"
)

// FSStore keeps one file per key: <root>/<period>/<stage>/<method><ext>
type FSStore struct {
	root string
	ext  string
}

// NewFSStore creates a filesystem store rooted at root.
// ext is the file extension including the dot (e.g. ".json").
func NewFSStore(root, ext string) *FSStore {
	return &FSStore{root: root, ext: ext}
}

func (s *FSStore) path(key Key) string {
	return filepath.Join(s.root, key.Period, string(key.Stage), key.Method+s.ext)
}

// Get reads a payload
func (s *FSStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact %s: %w", key, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Put writes a payload atomically (temp file, fsync, rename)
func (s *FSStore) Put(_ context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	target := s.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key.Method+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename artifact %s: %w", key, err)
	}
	return nil
}

// Delete removes a payload; deleting a missing key is not an error
func (s *FSStore) Delete(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// List returns the keys stored for a period, sorted by stage then method
func (s *FSStore) List(_ context.Context, period string) ([]Key, error) {
	base := filepath.Join(s.root, period)
	stages, err := os.ReadDir(base)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list period %s: %w", period, err)
	}

	var keys []Key
	for _, st := range stages {
		if !st.IsDir() || !contracts.IsValidStage(st.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(base, st.Name()))
		if err != nil {
			return nil, fmt.Errorf("list stage %s: %w", st.Name(), err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, s.ext) {
				continue
			}
			keys = append(keys, Key{Period: period, Stage: contracts.Stage(st.Name()), Method: strings.TrimSuffix(name, s.ext)})
		}
	}
	sortKeys(keys)
	return keys, nil
}

// Close is a no-op
func (s *FSStore) Close() error {
	return nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Stage != keys[j].Stage {
			return keys[i].Stage < keys[j].Stage
		}
		return keys[i].Method < keys[j].Method
	})
}
