// Package archive persists the set of already handled artifacts as a flat
// JSON list, so repeated runs against the same feed are idempotent.
package archive

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Archive is a handle to the ledger file. All reads and writes go through
// the handle, which serializes access so concurrent download workers
// within a run can't lose each other's insertions. There is no cross
// process file locking.
type Archive struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Archive {
	return &Archive{path: path}
}

// Path returns the ledger file location.
func (a *Archive) Path() string {
	return a.path
}

// Load reads the ledger file. A missing file denotes an empty ledger and
// is not an error. A file that exists but can't be parsed is an error:
// silently treating a corrupt ledger as empty would redownload everything
// and lose provenance.
func (a *Archive) Load() (map[string]struct{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys, err := a.read()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}

	return set, nil
}

// Contains reports whether key has already been recorded.
func (a *Archive) Contains(key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys, err := a.read()
	if err != nil {
		return false, err
	}

	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}

	return false, nil
}

// Insert records the given keys, skipping any that are already present,
// and rewrites the whole file. Inserting an existing key is a no-op.
func (a *Archive) Insert(keys ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.read()
	if err != nil {
		return err
	}

	set := make(map[string]struct{}, len(current))
	for _, k := range current {
		set[k] = struct{}{}
	}

	added := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := set[key]; ok {
			continue
		}
		set[key] = struct{}{}
		current = append(current, key)
		added++
	}

	if added == 0 {
		return nil
	}

	log.WithField("path", a.path).Debugf("recording %d archive key(s)", added)
	return a.write(current)
}

func (a *Archive) read() ([]string, error) {
	data, err := ioutil.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "failed to read archive file %q", a.path)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, errors.Wrapf(err, "failed to parse archive file %q", a.path)
	}

	return keys, nil
}

func (a *Archive) write(keys []string) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize archive")
	}

	if err := ioutil.WriteFile(a.path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write archive file %q", a.path)
	}

	return nil
}
