package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billed/internal/config"
	"billed/internal/handlers"
	"billed/internal/session"
	"billed/internal/store"

	"github.com/gorilla/csrf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client := store.NewHTTPClient(cfg.StoreURL, cfg.StoreToken)
	jar := session.NewCookieJar(cfg.SessionKey, cfg.SecureCookie)
	h := handlers.NewHandlers(client, jar, cfg.TemplateDir)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withCSRF(setupRouter(h, cfg.StaticDir), cfg.SessionKey, cfg.SecureCookie),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (store %s)", cfg.Port, cfg.StoreURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	return mux
}

// withCSRF requires the X-CSRF-Token header, set on every htmx request by the
// page shell, on state-changing requests. Without TLS the requests are marked
// plaintext so the origin check compares against http.
func withCSRF(next http.Handler, key []byte, secure bool) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)(next)
	if secure {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
