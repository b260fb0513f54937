package handlers

import (
	"encoding/json"
	"net/http"

	"billed/internal/models"
)

// Logical paths of the application.
const (
	LoginPath     = "/"
	BillsPath     = "/employee/bills"
	NewBillPath   = "/employee/bill/new"
	DashboardPath = "/admin/dashboard"
)

// HomePath returns the landing path of a role.
func HomePath(t models.UserType) string {
	if t == models.Admin {
		return DashboardPath
	}
	return BillsPath
}

// Register wires every route on mux. Employee and admin views are gated by
// Protect.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.LoginForm)
	mux.HandleFunc("POST /login/employee", h.LoginEmployee)
	mux.HandleFunc("POST /login/admin", h.LoginAdmin)
	mux.HandleFunc("POST /logout", h.Logout)

	mux.HandleFunc("GET "+BillsPath, h.Protect(models.Employee, h.ListBills))
	mux.HandleFunc("GET "+BillsPath+"/proof", h.Protect(models.Employee, h.PreviewProof))
	mux.HandleFunc("GET "+NewBillPath, h.Protect(models.Employee, h.NewBillForm))
	mux.HandleFunc("POST "+NewBillPath+"/file", h.Protect(models.Employee, h.UploadProof))
	mux.HandleFunc("POST "+NewBillPath, h.Protect(models.Employee, h.SubmitBill))

	mux.HandleFunc("GET "+DashboardPath, h.Protect(models.Admin, h.Dashboard))
}

// Navigate sends the client to path. htmx requests are navigated in place
// with HX-Location, which also pushes a history entry; plain requests get a
// redirect.
func Navigate(w http.ResponseWriter, r *http.Request, path string) {
	if !isHTMX(r) {
		http.Redirect(w, r, path, http.StatusFound)
		return
	}
	loc, _ := json.Marshal(struct {
		Path   string `json:"path"`
		Target string `json:"target"`
	}{Path: path, Target: "#content"})
	w.Header().Set("HX-Location", string(loc))
}
