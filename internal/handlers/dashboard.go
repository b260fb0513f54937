package handlers

import (
	"log"
	"net/http"

	"billed/internal/bills"
	"billed/internal/models"
)

// StatusCount is the number of bills in one status.
type StatusCount struct {
	Status models.Status
	Label  string
	Count  int
}

// DashboardViewModel is the data passed to the admin dashboard template.
type DashboardViewModel struct {
	Counts []StatusCount
	Bills  []bills.DisplayBill
	Error  string
}

// Dashboard renders every bill with a tally per status.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := Page{Path: DashboardPath, Session: GetSessionFromContext(r)}

	list, err := h.bills.GetBills(r.Context(), GetSessionFromContext(r))
	if err != nil {
		log.Printf("Dashboard error: %v", err)
		page.Data = DashboardViewModel{Error: err.Error()}
		h.render(w, r, "dashboard.html", page)
		return
	}
	bills.SortForDisplay(list)

	byStatus := bills.CountByStatus(list)
	counts := make([]StatusCount, 0, 3)
	for _, s := range []models.Status{models.StatusPending, models.StatusAccepted, models.StatusRefused} {
		counts = append(counts, StatusCount{Status: s, Label: s.Label(), Count: byStatus[s]})
	}

	page.Data = DashboardViewModel{Counts: counts, Bills: list}
	h.render(w, r, "dashboard.html", page)
}
