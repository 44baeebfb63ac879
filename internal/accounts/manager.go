package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/core"
)

// FormatVersion is the accounts document version this build reads and
// writes.
const FormatVersion = 3

// FileName is the accounts document inside the data directory.
const FileName = "accounts.json"

// Manager handles account storage and tracks the active account.
type Manager struct {
	env      *auth.Env
	logger   *slog.Logger
	filePath string

	// saveMu orders whole saves, so the last snapshot taken is the last
	// one written. It is taken before mu.
	saveMu sync.Mutex

	mu       sync.Mutex
	accounts []*Account
	activeID string
	// unknown keeps top-level keys from other versions of the document.
	unknown map[string]json.RawMessage
	// autosave saves after every account change once Load has run.
	autosave bool
}

// NewManager creates a manager for <dataDir>/accounts.json.
func NewManager(dataDir string, env *auth.Env) *Manager {
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		env:      env,
		logger:   logger,
		filePath: filepath.Join(dataDir, FileName),
	}
}

// Path returns the accounts document path.
func (m *Manager) Path() string {
	return m.filePath
}

// Load reads accounts from disk. A missing file is an empty list.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		m.mu.Lock()
		m.autosave = true
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading accounts: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing accounts: %w", err)
	}

	var version int
	if err := json.Unmarshal(doc["formatVersion"], &version); err != nil {
		return fmt.Errorf("parsing accounts format version: %w", err)
	}
	if version != FormatVersion {
		return fmt.Errorf("unsupported accounts format version %d (want %d)", version, FormatVersion)
	}

	var records []*core.Account
	if raw, ok := doc["accounts"]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("parsing accounts list: %w", err)
		}
	}
	var activeID string
	if raw, ok := doc["activeAccount"]; ok {
		if err := json.Unmarshal(raw, &activeID); err != nil {
			return fmt.Errorf("parsing active account: %w", err)
		}
	}

	delete(doc, "formatVersion")
	delete(doc, "accounts")
	delete(doc, "activeAccount")

	list := make([]*Account, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.InternalID == "" {
			rec.InternalID = core.NewInternalID()
		}
		acc := New(rec, m.env)
		acc.Observe(m)
		list = append(list, acc)
	}

	m.mu.Lock()
	m.accounts = list
	m.activeID = ""
	if m.indexOf(activeID) >= 0 {
		m.activeID = activeID
	}
	m.unknown = doc
	m.autosave = true
	m.mu.Unlock()

	m.logger.Info("accounts loaded", "count", len(list), "path", m.filePath)
	return nil
}

// Save writes accounts to disk, replacing the file atomically.
func (m *Manager) Save() error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	doc := make(map[string]any, len(m.unknown)+3)
	for k, v := range m.unknown {
		doc[k] = v
	}
	records := make([]*core.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		records = append(records, acc.Snapshot())
	}
	doc["formatVersion"] = FormatVersion
	doc["accounts"] = records
	if m.activeID != "" {
		doc["activeAccount"] = m.activeID
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	if err := writeFileAtomic(m.filePath, data); err != nil {
		return err
	}
	m.logger.Debug("accounts saved", "count", len(records))
	return nil
}

// writeFileAtomic writes data next to path and renames it into place, so
// a crash leaves either the old or the new file. The file holds tokens
// and is private to the user.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating accounts directory: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary accounts file: %w", err)
	}
	tmpPath := file.Name()
	if err := file.Chmod(0600); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("restricting temporary accounts file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temporary accounts file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temporary accounts file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temporary accounts file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming accounts file into place: %w", err)
	}
	return nil
}

// Add adds a logged-in account. If an account with the same game profile
// already exists, its record is replaced instead and that account is
// returned.
func (m *Manager) Add(acc *Account) (*Account, error) {
	snap := acc.Snapshot()

	m.mu.Lock()
	if snap.HasProfile() {
		for _, existing := range m.accounts {
			if existing == acc || existing.Snapshot().Profile.ID != snap.Profile.ID {
				continue
			}
			m.mu.Unlock()
			if err := existing.ReplaceWith(snap); err != nil {
				return nil, fmt.Errorf("updating account %s: %w", snap.Profile.Name, err)
			}
			return existing, nil
		}
	}
	if m.indexOf(snap.InternalID) >= 0 {
		m.mu.Unlock()
		return acc, nil
	}
	m.accounts = append(m.accounts, acc)
	if m.activeID == "" {
		m.activeID = snap.InternalID
	}
	m.mu.Unlock()

	acc.Observe(m)
	m.logger.Info("account added", "account", snap.InternalID, "name", snap.DisplayName())
	m.saveLogged()
	return acc, nil
}

// Get returns the account with the given internal id.
func (m *Manager) Get(id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.accounts[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns the accounts in the order they were added.
func (m *Manager) List() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.accounts)
}

// Active returns the currently active account, or nil.
func (m *Manager) Active() *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(m.activeID); i >= 0 {
		return m.accounts[i]
	}
	return nil
}

// SetActive sets the active account.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	if m.indexOf(id) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.activeID = id
	m.mu.Unlock()

	m.saveLogged()
	return nil
}

// Remove deletes an account. Accounts that are in use or busy stay.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	acc := m.accounts[i]
	switch {
	case acc.IsActive():
		m.mu.Unlock()
		return ErrInUse
	case acc.Busy():
		m.mu.Unlock()
		return ErrBusy
	}
	m.accounts = slices.Delete(m.accounts, i, i+1)
	if m.activeID == id {
		m.activeID = ""
		if len(m.accounts) > 0 {
			m.activeID = m.accounts[0].ID()
		}
	}
	m.mu.Unlock()

	m.logger.Info("account removed", "account", id)
	m.saveLogged()
	return nil
}

// RefreshDue starts a refresh on every account whose tokens are due and
// returns the started tasks. Busy accounts are skipped.
func (m *Manager) RefreshDue(ctx context.Context) []*auth.Task {
	var tasks []*auth.Task
	for _, acc := range m.List() {
		if !acc.ShouldRefresh() {
			continue
		}
		task, err := acc.Refresh(ctx)
		if err != nil {
			m.logger.Info("skipping refresh", "account", acc.ID(), "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func (m *Manager) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(m.accounts, func(a *Account) bool { return a.ID() == id })
}

func (m *Manager) saveLogged() {
	m.mu.Lock()
	autosave := m.autosave
	m.mu.Unlock()
	if !autosave {
		return
	}
	if err := m.Save(); err != nil {
		m.logger.Error("saving accounts failed", "error", err)
	}
}

// AccountChanged saves the document.
func (m *Manager) AccountChanged(*Account) {
	m.saveLogged()
}

func (m *Manager) ActivityChanged(*Account, bool) {}

func (m *Manager) Progress(*Account, auth.Status) {}

func (m *Manager) Finished(*Account, auth.Result) {}
