package handlers

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"

	"billed/internal/bills"
	"billed/internal/models"
	"billed/internal/newbill"
	"billed/internal/session"
	"billed/internal/store"

	"github.com/gorilla/csrf"
)

// Context key type to avoid collisions.
type contextKey string

// SessionContextKey is the context key for the logged in user.
const SessionContextKey contextKey = "session"

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	jar         session.Jar
	bills       *bills.Controller
	newBill     *newbill.Controller
	templateDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client store.Client, jar session.Jar, templateDir string) *Handlers {
	return &Handlers{
		jar:         jar,
		bills:       bills.New(client, nil),
		newBill:     newbill.New(client, nil),
		templateDir: templateDir,
	}
}

// GetSessionFromContext retrieves the logged in user from request context.
func GetSessionFromContext(r *http.Request) *models.Session {
	if s, ok := r.Context().Value(SessionContextKey).(*models.Session); ok {
		return s
	}
	return nil
}

func (h *Handlers) provider(w http.ResponseWriter, r *http.Request) session.Provider {
	return session.NewProvider(h.jar.For(w, r))
}

// Protect gates a view behind a session of the given role. Without a usable
// session (absent or malformed alike) the client is sent to the login page;
// a session of the other role is sent to its own home.
func (h *Handlers) Protect(role models.UserType, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.provider(w, r).Current()
		if err != nil {
			Navigate(w, r, LoginPath)
			return
		}
		if s.Type != role {
			Navigate(w, r, HomePath(s.Type))
			return
		}
		ctx := context.WithValue(r.Context(), SessionContextKey, s)
		next(w, r.WithContext(ctx))
	}
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error     string
	ErrorRole models.UserType
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go to the role's home
	if s, err := h.provider(w, r).Current(); err == nil {
		Navigate(w, r, HomePath(s.Type))
		return
	}
	h.render(w, r, "login.html", Page{Path: LoginPath, Data: LoginViewModel{}})
}

// LoginEmployee handles the employee login form.
func (h *Handlers) LoginEmployee(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.Employee)
}

// LoginAdmin handles the administrator login form.
func (h *Handlers) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, models.Admin)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request, role models.UserType) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", Page{Path: LoginPath, Data: LoginViewModel{Error: "Invalid form submission", ErrorRole: role}})
		return
	}

	_, err := session.Login(h.jar.For(w, r), role, r.FormValue("email"), r.FormValue("password"))
	if errors.Is(err, session.ErrInvalidCredentials) {
		h.render(w, r, "login.html", Page{Path: LoginPath, Data: LoginViewModel{Error: "Email et mot de passe requis", ErrorRole: role}})
		return
	}
	if err != nil {
		log.Printf("Login error: %v", err)
		h.render(w, r, "login.html", Page{Path: LoginPath, Data: LoginViewModel{Error: "An error occurred. Please try again.", ErrorRole: role}})
		return
	}

	Navigate(w, r, HomePath(role))
}

// Logout clears the session and returns to the login page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := session.Logout(h.jar.For(w, r)); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}
	Navigate(w, r, LoginPath)
}

// Page is the data every full view is rendered with.
type Page struct {
	Path    string
	Session *models.Session
	// OOB marks the shell for an out-of-band swap on htmx navigation.
	OOB       bool
	CSRFToken string
	Data      any
}

// Active reports whether the navigation icon for path is the current one.
func (p Page) Active(path string) bool {
	return p.Path == path
}

// render executes a view inside the shell. htmx navigations get only the
// view plus an out-of-band shell refresh.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, page Page) {
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, "base.html"), filepath.Join(h.templateDir, viewName))
	if err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	page.CSRFToken = csrf.Token(r)
	target := "base.html"
	if isHTMX(r) {
		target = "partial"
		page.OOB = true
	}
	if err := tmpl.ExecuteTemplate(w, target, page); err != nil {
		log.Printf("Template execution error: %v", err)
	}
}

// renderFragment executes a standalone fragment template.
func (h *Handlers) renderFragment(w http.ResponseWriter, name string, data any) {
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, name))
	if err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("Template execution error: %v", err)
	}
}

// isHTMX reports whether r expects a fragment. A history restore after a
// cache miss replaces the whole body, so it gets the full page.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true" && r.Header.Get("HX-History-Restore-Request") != "true"
}
