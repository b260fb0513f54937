package session

import (
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
)

// Storage is the client-side key/value store holding the serialized user.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// MemoryStorage keeps items in a map. It backs tests and the CLI.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Jar binds client-side storage to one request/response pair.
type Jar interface {
	For(w http.ResponseWriter, r *http.Request) Storage
}

// CookieName is the name of the cookie carrying the client-side storage.
const CookieName = "billed"

// CookieJar signs and persists client-side storage in a browser cookie.
type CookieJar struct {
	store *sessions.CookieStore
}

// NewCookieJar creates a CookieJar whose cookies are signed with key.
func NewCookieJar(key []byte, secure bool) *CookieJar {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieJar{store: store}
}

// For returns the Storage bound to one request/response pair. Writes are
// flushed to the response immediately, so they must happen before the body is
// written.
func (j *CookieJar) For(w http.ResponseWriter, r *http.Request) Storage {
	// A cookie that fails verification yields a fresh, empty session.
	s, _ := j.store.Get(r, CookieName)
	return &CookieStorage{session: s, w: w, r: r}
}

// CookieStorage is a Storage backed by a signed cookie.
type CookieStorage struct {
	session *sessions.Session
	w       http.ResponseWriter
	r       *http.Request
}

func (c *CookieStorage) GetItem(key string) (string, bool) {
	v, ok := c.session.Values[key].(string)
	return v, ok
}

func (c *CookieStorage) SetItem(key, value string) error {
	c.session.Values[key] = value
	return c.session.Save(c.r, c.w)
}

func (c *CookieStorage) RemoveItem(key string) error {
	delete(c.session.Values, key)
	return c.session.Save(c.r, c.w)
}
