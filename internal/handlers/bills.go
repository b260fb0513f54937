package handlers

import (
	"log"
	"net/http"
	"strconv"

	"billed/internal/bills"
)

// BillsViewModel is the data passed to the bills list template.
type BillsViewModel struct {
	Bills []bills.DisplayBill
	Error string
}

// ListBills renders the employee's bills, most recent first. A store failure
// replaces the list with its message.
func (h *Handlers) ListBills(w http.ResponseWriter, r *http.Request) {
	page := Page{Path: BillsPath, Session: GetSessionFromContext(r)}

	list, err := h.bills.GetBills(r.Context(), GetSessionFromContext(r))
	if err != nil {
		log.Printf("ListBills error: %v", err)
		page.Data = BillsViewModel{Error: err.Error()}
		h.render(w, r, "bills.html", page)
		return
	}

	bills.SortForDisplay(list)
	page.Data = BillsViewModel{Bills: list}
	h.render(w, r, "bills.html", page)
}

// PreviewProof renders the proof modal body for the eye icon. The client
// sends the proof URL it was rendered with and the modal's width.
func (h *Handlers) PreviewProof(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, err := strconv.ParseFloat(q.Get("width"), 64)
	if err != nil || width < 0 {
		width = 0
	}
	h.renderFragment(w, "proof.html", bills.Preview(q.Get("url"), width))
}
