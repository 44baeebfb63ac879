package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/auth/authtest"
	"github.com/quasar/mcauth/internal/core"
)

func profileAccount(id, name string) *Account {
	rec := core.NewMSAAccount()
	rec.Profile = core.Profile{ID: id, Name: name}
	return New(rec, &auth.Env{})
}

func TestManager_LoadMissingFile(t *testing.T) {
	m := NewManager(t.TempDir(), &auth.Env{})

	require.NoError(t, m.Load())
	assert.Empty(t, m.List())
	assert.Nil(t, m.Active())
}

func TestManager_AddSetsFirstActive(t *testing.T) {
	m := NewManager(t.TempDir(), &auth.Env{})
	require.NoError(t, m.Load())

	a := profileAccount("p1", "Notch")
	b := profileAccount("p2", "Jeb")
	_, err := m.Add(a)
	require.NoError(t, err)
	_, err = m.Add(b)
	require.NoError(t, err)

	assert.Len(t, m.List(), 2)
	assert.Equal(t, a, m.Active())

	require.NoError(t, m.SetActive(b.ID()))
	assert.Equal(t, b, m.Active())

	assert.ErrorIs(t, m.SetActive("nope"), ErrNotFound)
}

func TestManager_AddSameProfileReplaces(t *testing.T) {
	m := NewManager(t.TempDir(), &auth.Env{})
	require.NoError(t, m.Load())

	first := profileAccount("p1", "Notch")
	_, err := m.Add(first)
	require.NoError(t, err)

	again := profileAccount("p1", "Notch2")
	got, err := m.Add(again)
	require.NoError(t, err)

	assert.Same(t, first, got)
	assert.Len(t, m.List(), 1)
	assert.Equal(t, "Notch2", first.Snapshot().Profile.Name)
}

func TestManager_AddSameProfileInUse(t *testing.T) {
	m := NewManager(t.TempDir(), &auth.Env{})
	require.NoError(t, m.Load())

	first := profileAccount("p1", "Notch")
	_, err := m.Add(first)
	require.NoError(t, err)
	use := first.Acquire()
	defer use.Release()

	_, err = m.Add(profileAccount("p1", "Notch2"))
	assert.ErrorIs(t, err, ErrInUse)
	assert.Equal(t, "Notch", first.Snapshot().Profile.Name)
}

func TestManager_RemoveGatedByUsage(t *testing.T) {
	m := NewManager(t.TempDir(), &auth.Env{})
	require.NoError(t, m.Load())

	a := profileAccount("p1", "Notch")
	b := profileAccount("p2", "Jeb")
	m.Add(a)
	m.Add(b)

	use := a.Acquire()
	assert.ErrorIs(t, m.Remove(a.ID()), ErrInUse)
	use.Release()

	require.NoError(t, m.Remove(a.ID()))
	assert.Equal(t, []*Account{b}, m.List())
	assert.Equal(t, b, m.Active())
	assert.ErrorIs(t, m.Remove(a.ID()), ErrNotFound)
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &auth.Env{})
	require.NoError(t, m.Load())

	a := profileAccount("p1", "Notch")
	m.Add(a)
	m.Add(profileAccount("p2", "Jeb"))
	require.NoError(t, m.Save())

	info, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := NewManager(dir, &auth.Env{})
	require.NoError(t, loaded.Load())
	require.Len(t, loaded.List(), 2)
	assert.Equal(t, a.ID(), loaded.Active().ID())
	assert.Equal(t, "Jeb", loaded.List()[1].Snapshot().Profile.Name)
}

// syncBuffer is a log sink shared by concurrent saves.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestManager_ConcurrentAutosaves(t *testing.T) {
	dir := t.TempDir()
	var logs syncBuffer
	env := &auth.Env{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	m := NewManager(dir, env)
	require.NoError(t, m.Load())

	const accountCount = 8
	accs := make([]*Account, accountCount)
	for i := range accs {
		acc, err := m.Add(profileAccount(fmt.Sprintf("p%d", i), fmt.Sprintf("Player%d", i)))
		require.NoError(t, err)
		accs[i] = acc
	}

	for round := range 30 {
		var wg sync.WaitGroup
		for i, acc := range accs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := acc.Snapshot()
				rec.Profile.Name = fmt.Sprintf("Player%d-%d", i, round)
				rec.MSAToken = core.Token{Value: "msa", RefreshToken: fmt.Sprintf("refresh-%d-%d", i, round)}
				assert.NoError(t, acc.ReplaceWith(rec))
			}()
		}
		wg.Wait()

		loaded := NewManager(dir, &auth.Env{})
		require.NoError(t, loaded.Load(), "round %d", round)
		require.Len(t, loaded.List(), accountCount)
		for i, acc := range loaded.List() {
			snap := acc.Snapshot()
			assert.Equal(t, fmt.Sprintf("Player%d-%d", i, round), snap.Profile.Name)
			assert.Equal(t, fmt.Sprintf("refresh-%d-%d", i, round), snap.MSAToken.RefreshToken)
		}
	}

	assert.NotContains(t, logs.String(), "saving accounts failed")
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestManager_PreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	doc := `{
		"formatVersion": 3,
		"futureSetting": {"enabled": true},
		"activeAccount": "abc",
		"accounts": [{"internalId": "abc", "type": "msa", "profile": {"id": "p1", "name": "Notch"}, "newField": [1, 2]}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	m := NewManager(dir, &auth.Env{})
	require.NoError(t, m.Load())
	require.NoError(t, m.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))

	assert.Equal(t, map[string]any{"enabled": true}, saved["futureSetting"])
	assert.Equal(t, "abc", saved["activeAccount"])
	accounts := saved["accounts"].([]any)
	require.Len(t, accounts, 1)
	assert.Equal(t, []any{1.0, 2.0}, accounts[0].(map[string]any)["newField"])
}

func TestManager_RejectsOtherVersions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"formatVersion": 2, "accounts": []}`), 0600))

	m := NewManager(dir, &auth.Env{})
	err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported accounts format version 2")
}

func TestManager_AutosaveAfterOperation(t *testing.T) {
	p := authtest.NewProvider(t)
	dir := t.TempDir()
	env := newTestEnv(p)
	m := NewManager(dir, env)
	require.NoError(t, m.Load())

	acc := NewMSA(env)
	task, err := acc.LoginMSA(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, auth.TaskSucceeded, wait(t, task).State)
	_, err = m.Add(acc)
	require.NoError(t, err)

	p.Set(func(p *authtest.Provider) { p.RevokedRefresh = true })
	task, err = acc.Refresh(context.Background())
	require.NoError(t, err)
	wait(t, task)

	loaded := NewManager(dir, env)
	require.NoError(t, loaded.Load())
	require.Len(t, loaded.List(), 1)
	assert.Equal(t, core.StateGone, loaded.List()[0].State())
}

func TestManager_RefreshDue(t *testing.T) {
	p := authtest.NewProvider(t)
	env := newTestEnv(p)
	m := NewManager(t.TempDir(), env)
	require.NoError(t, m.Load())

	fresh := NewMSA(env)
	task, err := fresh.LoginMSA(context.Background(), nil)
	require.NoError(t, err)
	wait(t, task)
	m.Add(fresh)

	stale := core.NewMSAAccount()
	stale.MSAToken = core.Token{Value: "old", RefreshToken: "msa-refresh"}
	m.Add(New(stale, env))

	tasks := m.RefreshDue(context.Background())
	require.Len(t, tasks, 1)
	assert.Equal(t, auth.TaskSucceeded, wait(t, tasks[0]).State)

	for _, acc := range m.List() {
		assert.Equal(t, core.StateOnline, acc.State())
	}
}
