// Package backend is a local stand-in for the remote bill store. It serves
// the same collection API the client consumes, backed by sqlite and a
// directory of uploaded files.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"billed/internal/models"
	"billed/internal/storage"
	"billed/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxUploadSize bounds a proof upload.
const maxUploadSize = 10 << 20

// Server serves the bills collection.
type Server struct {
	db        *storage.DB
	uploadDir string
	publicURL string
	token     string
	router    *mux.Router
}

// NewServer creates a Server. Files are written to uploadDir and addressed
// under publicURL. A non-empty token is required as a bearer credential.
func NewServer(db *storage.DB, uploadDir, publicURL, token string) *Server {
	s := &Server{
		db:        db,
		uploadDir: uploadDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		token:     token,
		router:    mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	files := http.StripPrefix("/files/", http.FileServer(http.Dir(s.uploadDir)))
	s.router.PathPrefix("/files/").Handler(files).Methods("GET")

	api := s.router.PathPrefix("/bills").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("", s.listBills).Methods("GET")
	api.HandleFunc("", s.createBill).Methods("POST")
	api.HandleFunc("/{id}", s.updateBill).Methods("PATCH")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound)
	})
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.db.ListBills(r.URL.Query().Get("email"))
	if err != nil {
		log.Printf("ListBills error: %v", err)
		writeError(w, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) createBill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeMessage(w, http.StatusBadRequest, "Erreur 400: "+err.Error())
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	file, header, err := r.FormFile("file")
	if err != nil || email == "" {
		writeMessage(w, http.StatusBadRequest, "Erreur 400: file and email are required")
		return
	}
	defer file.Close()

	id := uuid.NewString()
	stored := id + strings.ToLower(filepath.Ext(header.Filename))
	if err := s.saveFile(stored, file); err != nil {
		log.Printf("Save upload error: %v", err)
		writeError(w, http.StatusInternalServerError)
		return
	}

	fileURL := s.publicURL + "/files/" + stored
	if err := s.db.CreateDraft(id, email, fileURL, filepath.Base(header.Filename)); err != nil {
		log.Printf("CreateDraft error: %v", err)
		writeError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, store.UploadResult{FileURL: fileURL, FileID: stored, Key: id})
}

func (s *Server) saveFile(name string, src io.Reader) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Server) updateBill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var bill models.Bill
	if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
		writeMessage(w, http.StatusBadRequest, "Erreur 400: invalid bill")
		return
	}
	bill.ID = id
	if bill.Status == "" {
		bill.Status = models.StatusPending
	}

	if err := s.db.UpdateBill(&bill); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound)
			return
		}
		log.Printf("UpdateBill error: %v", err)
		writeError(w, http.StatusInternalServerError)
		return
	}

	saved, err := s.db.GetBill(id)
	if err != nil {
		log.Printf("GetBill error: %v", err)
		writeError(w, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode response error: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeError(w http.ResponseWriter, status int) {
	writeMessage(w, status, fmt.Sprintf("Erreur %d", status))
}
