// Package config stores user-adjustable settings in the sqlite
// key/value table so they survive process restarts, the way the
// reference application's ConfigManager does.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"fluxdl/internal/storage"
)

const (
	KeyDefaultThreadCount = "default_thread_count"
	KeyDefaultDestDir     = "default_dest_dir"
	KeyControlServerPort  = "control_server_port"
	KeyControlServerToken = "control_server_token"
	KeyMaxConcurrent      = "max_concurrent_downloads"
	KeyUserAgent          = "user_agent"
	KeyOrganizeDownloads  = "organize_downloads"
)

const (
	defaultThreadCount  = 8
	defaultControlPort  = 4444
	defaultMaxConcurrent = 5
)

// Manager reads and writes settings backed by the sqlite store. Every
// getter falls back to a sane default when a key is unset so callers
// never need a separate "has this been configured" check.
type Manager struct {
	store *storage.Store
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) getInt(key string, fallback int) int {
	val, ok, err := m.store.GetSetting(key)
	if err != nil || !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func (m *Manager) setInt(key string, value int) error {
	return m.store.SetSetting(key, strconv.Itoa(value))
}

func (m *Manager) DefaultThreadCount() int { return m.getInt(KeyDefaultThreadCount, defaultThreadCount) }
func (m *Manager) SetDefaultThreadCount(n int) error {
	return m.setInt(KeyDefaultThreadCount, n)
}

func (m *Manager) MaxConcurrentDownloads() int {
	return m.getInt(KeyMaxConcurrent, defaultMaxConcurrent)
}
func (m *Manager) SetMaxConcurrentDownloads(n int) error {
	return m.setInt(KeyMaxConcurrent, n)
}

func (m *Manager) ControlServerPort() int { return m.getInt(KeyControlServerPort, defaultControlPort) }
func (m *Manager) SetControlServerPort(port int) error {
	return m.setInt(KeyControlServerPort, port)
}

// ControlServerToken returns the bearer token the loopback control
// server checks on every request, generating and persisting one the
// first time it's needed.
func (m *Manager) ControlServerToken() string {
	val, ok, err := m.store.GetSetting(KeyControlServerToken)
	if err == nil && ok && val != "" {
		return val
	}
	token := generateSecureToken()
	if err := m.store.SetSetting(KeyControlServerToken, token); err != nil {
		return token
	}
	return token
}

func (m *Manager) DefaultDestDir() string {
	val, ok, err := m.store.GetSetting(KeyDefaultDestDir)
	if err != nil || !ok {
		return ""
	}
	return val
}

func (m *Manager) SetDefaultDestDir(dir string) error {
	return m.store.SetSetting(KeyDefaultDestDir, dir)
}

// UserAgent returns the custom User-Agent override, or "" to mean "use
// the built-in default".
func (m *Manager) UserAgent() string {
	val, ok, err := m.store.GetSetting(KeyUserAgent)
	if err != nil || !ok {
		return ""
	}
	return val
}

func (m *Manager) SetUserAgent(ua string) error {
	return m.store.SetSetting(KeyUserAgent, ua)
}

// OrganizeDownloads reports whether completed downloads should be
// sorted into category subfolders. Off by default: sorting a file out
// from under the path a caller was just handed back is surprising
// unless asked for.
func (m *Manager) OrganizeDownloads() bool {
	val, ok, err := m.store.GetSetting(KeyOrganizeDownloads)
	return err == nil && ok && val == "true"
}

func (m *Manager) SetOrganizeDownloads(enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	return m.store.SetSetting(KeyOrganizeDownloads, val)
}

func generateSecureToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fluxdl-fallback-token-change-me"
	}
	return hex.EncodeToString(b)
}
