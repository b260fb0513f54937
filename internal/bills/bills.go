// Package bills lists an employee's bills for display and prepares proof
// previews.
package bills

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"billed/internal/models"
	"billed/internal/store"
)

// DisplayBill is a bill ready for the list view. The embedded Bill keeps the
// raw values; DisplayDate and StatusLabel are what the user reads.
type DisplayBill struct {
	models.Bill
	DisplayDate string
	StatusLabel string
}

// ProofPreview describes the image shown in the proof modal.
type ProofPreview struct {
	URL   string
	Width int
}

// Controller fetches and formats bills.
type Controller struct {
	store  store.Client
	logger *log.Logger
}

// New creates a Controller. A nil logger means log.Default().
func New(client store.Client, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{store: client, logger: logger}
}

// GetBills lists the remote bills visible to s and formats each one. An
// employee sees only their own bills; an administrator sees all of them.
// A date that cannot be formatted is logged and kept as is, so the result
// always has as many entries as the store returned. The order is the store's.
func (c *Controller) GetBills(ctx context.Context, s *models.Session) ([]DisplayBill, error) {
	bills, err := c.store.Bills().List(ctx, Scope(s))
	if err != nil {
		return nil, err
	}

	out := make([]DisplayBill, 0, len(bills))
	for _, b := range bills {
		d := DisplayBill{Bill: b, DisplayDate: b.Date, StatusLabel: b.Status.Label()}
		if formatted, err := FormatDate(b.Date); err != nil {
			c.logger.Printf("FormatDate error for bill %s: %v", b.ID, err)
		} else {
			d.DisplayDate = formatted
		}
		out = append(out, d)
	}
	return out, nil
}

// Scope is the list query matching what s may see.
func Scope(s *models.Session) store.ListQuery {
	if s == nil || s.Type == models.Admin {
		return store.ListQuery{}
	}
	return store.ListQuery{Email: s.Email}
}

// SortForDisplay orders bills most recent first on the raw ISO date. Bills
// sharing a date keep their relative order.
func SortForDisplay(bills []DisplayBill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].Date > bills[j].Date
	})
}

// CountByStatus tallies bills per raw status.
func CountByStatus(bills []DisplayBill) map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, b := range bills {
		counts[b.Status]++
	}
	return counts
}

// Preview sizes the proof image at half the modal width. It makes no remote
// call: the URL was embedded when the list was rendered.
func Preview(url string, containerWidth float64) ProofPreview {
	return ProofPreview{URL: url, Width: int(math.Floor(containerWidth * 0.5))}
}

var shortMonths = [...]string{
	"Jan", "Fév", "Mar", "Avr", "Mai", "Jui",
	"Jui", "Aoû", "Sep", "Oct", "Nov", "Déc",
}

// FormatDate turns "2004-04-04" into "4 Avr. 04".
func FormatDate(raw string) (string, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return fmt.Sprintf("%d %s. %02d", t.Day(), shortMonths[t.Month()-1], t.Year()%100), nil
}
