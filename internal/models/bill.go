package models

// DefaultPct is the VAT percentage applied when the form leaves it blank.
const DefaultPct = 20

// Status is the server-assigned review state of a bill.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Label returns the display label for the status. Unknown values pass through unchanged.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	default:
		return string(s)
	}
}

// ExpenseCategory is the expense type selected on the new bill form.
type ExpenseCategory string

const (
	CategoryTransports  ExpenseCategory = "Transports"
	CategoryRestaurants ExpenseCategory = "Restaurants et bars"
	CategoryHotel       ExpenseCategory = "Hôtel et logement"
	CategoryOnline      ExpenseCategory = "Services en ligne"
	CategoryIT          ExpenseCategory = "IT et électronique"
	CategoryEquipment   ExpenseCategory = "Equipement et matériel"
	CategoryOffice      ExpenseCategory = "Fournitures de bureau"
)

// Categories lists the options offered by the new bill form, in display order.
var Categories = []ExpenseCategory{
	CategoryTransports,
	CategoryRestaurants,
	CategoryHotel,
	CategoryOnline,
	CategoryIT,
	CategoryEquipment,
	CategoryOffice,
}

// Known reports whether c is one of the form's options. Other values are
// accepted and kept verbatim.
func (c ExpenseCategory) Known() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Bill represents an expense bill as exchanged with the remote store.
type Bill struct {
	ID           string          `json:"id,omitempty"`
	Email        string          `json:"email"`
	Type         ExpenseCategory `json:"type"`
	Name         string          `json:"name"`
	Amount       int             `json:"amount"`
	Date         string          `json:"date"`
	VAT          string          `json:"vat"`
	Pct          int             `json:"pct"`
	Commentary   string          `json:"commentary"`
	FileURL      *string         `json:"fileUrl"`
	FileName     *string         `json:"fileName"`
	Status       Status          `json:"status"`
	CommentAdmin string          `json:"commentAdmin,omitempty"`
}
