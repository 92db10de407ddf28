/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package kv

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	applog "graphicnovel/internal/log"
)

const (
	// BackupsDirName holds timestamped copies of previous values under the store root.
	BackupsDirName = "backups"
	fileExt        = ".json"
	// maxBackupsPerKey bounds the number of rotated backups kept per key.
	maxBackupsPerKey = 5
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStore keeps one file per key in Root. Writes go to a temp file that is
// renamed over the target; the previous value is copied to backups/ first.
type FileStore struct {
	Root string
	mu   sync.Mutex
}

// NewFileStore creates root (and its backups dir) if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{Root: root}, nil
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) string { return filepath.Join(s.Root, key+fileExt) }

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// Get reads the value for key. An unreadable current file falls back to the latest backup.
func (s *FileStore) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.Path(key))
	if err == nil {
		return string(b), true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	l := applog.WithOperation(applog.WithComponent("kv"), "get").With(slog.String("key", key))
	l.Warn("current value unreadable, trying backup", slog.Any("err", err))
	v, berr := s.latestBackup(key)
	if berr != nil {
		return "", false, fmt.Errorf("read %s: %w; backup attempt: %v", key, err, berr)
	}
	return v, true, nil
}

// Set replaces the value for key transactionally.
func (s *FileStore) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.Path(key)
	if err := s.backupLocked(key); err != nil {
		return err
	}
	temp := filepath.Join(s.Root, fmt.Sprintf(".%s.tmp-%d-%d", key, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, []byte(value)); err != nil {
		return fmt.Errorf("write temp %s: %w", key, err)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if err := os.Rename(temp, target); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Delete removes key after backing up its current value. Missing keys are not an error.
func (s *FileStore) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backupLocked(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Backups lists the backup files of key, oldest first.
func (s *FileStore) Backups(key string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(s.Root, BackupsDirName))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := key + fileExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(s.Root, BackupsDirName, name))
		}
	}
	// timestamp in name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) backupLocked(key string) error {
	src := s.Path(key)
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	stamp := time.Now().UTC().Format("20060102-150405.000000000")
	dst := filepath.Join(s.Root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", key, fileExt, stamp))
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("backup %s: %w", key, err)
	}
	backups, err := s.Backups(key)
	if err != nil {
		return err
	}
	for len(backups) > maxBackupsPerKey {
		_ = os.Remove(backups[0])
		backups = backups[1:]
	}
	return nil
}

func (s *FileStore) latestBackup(key string) (string, error) {
	backups, err := s.Backups(key)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", errors.New("no backups found")
	}
	b, err := os.ReadFile(backups[len(backups)-1])
	if err != nil {
		return "", fmt.Errorf("read latest backup: %w", err)
	}
	return string(b), nil
}

// writeFileSync writes data to path and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
