package store

import (
	"context"
	"io"
	"sync"

	"billed/internal/models"
)

// CreateCall records one Create invocation on a Mock.
type CreateCall struct {
	Request CreateRequest
	Body    []byte
}

// Mock is an in-memory Resource recording every call. The Func fields
// override the default behaviour.
type Mock struct {
	mu sync.Mutex

	ListFunc   func(ctx context.Context, q ListQuery) ([]models.Bill, error)
	CreateFunc func(ctx context.Context, req CreateRequest) (*UploadResult, error)
	UpdateFunc func(ctx context.Context, req UpdateRequest) (*models.Bill, error)

	ListCalls   int
	ListQueries []ListQuery
	CreateCalls []CreateCall
	UpdateCalls []UpdateRequest
}

// NewMock creates a Mock whose List returns bills.
func NewMock(bills []models.Bill) *Mock {
	return &Mock{
		ListFunc: func(context.Context, ListQuery) ([]models.Bill, error) {
			return append([]models.Bill(nil), bills...), nil
		},
		CreateFunc: func(context.Context, CreateRequest) (*UploadResult, error) {
			return &UploadResult{FileURL: "https://localhost:3456/images/test.jpg", Key: "1234"}, nil
		},
		UpdateFunc: func(context.Context, UpdateRequest) (*models.Bill, error) {
			if len(bills) == 0 {
				return &models.Bill{}, nil
			}
			b := bills[0]
			return &b, nil
		},
	}
}

// Bills returns the mock itself.
func (m *Mock) Bills() Resource {
	return m
}

func (m *Mock) List(ctx context.Context, q ListQuery) ([]models.Bill, error) {
	m.mu.Lock()
	m.ListCalls++
	m.ListQueries = append(m.ListQueries, q)
	m.mu.Unlock()
	return m.ListFunc(ctx, q)
}

func (m *Mock) Create(ctx context.Context, req CreateRequest) (*UploadResult, error) {
	var body []byte
	if req.File != nil {
		body, _ = io.ReadAll(req.File)
	}
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, CreateCall{Request: req, Body: body})
	m.mu.Unlock()
	return m.CreateFunc(ctx, req)
}

func (m *Mock) Update(ctx context.Context, req UpdateRequest) (*models.Bill, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, req)
	m.mu.Unlock()
	return m.UpdateFunc(ctx, req)
}

// Fixtures returns four sample bills with statuses pending, refused,
// accepted and pending, in that order.
func Fixtures() []models.Bill {
	url := func(s string) *string { return &s }
	return []models.Bill{
		{
			ID: "47qAXb6fIm2zOKkLzMro", Email: "a@a", Type: models.CategoryHotel,
			Name: "encore", Amount: 400, Date: "2004-04-04", VAT: "80", Pct: 20,
			Commentary: "séminaire billed", Status: models.StatusPending, CommentAdmin: "ok",
			FileURL:  url("https://test.storage.tld/v0/b/billable-677b6/o/justificatifs%2Fpreview-facture-free-201801-pdf-1.jpg?alt=media"),
			FileName: url("preview-facture-free-201801-pdf-1.jpg"),
		},
		{
			ID: "BeKy5Mo4jkmdfPGYpTxZ", Email: "a@a", Type: models.CategoryTransports,
			Name: "test1", Amount: 100, Date: "2001-01-01", VAT: "", Pct: 20,
			Commentary: "plop", Status: models.StatusRefused, CommentAdmin: "en fait non",
			FileURL:  url("https://test.storage.tld/v0/b/billable-677b6/o/justificatifs%2F1592770761.jpeg?alt=media"),
			FileName: url("1592770761.jpeg"),
		},
		{
			ID: "UIUZtnPQvnbFnB0ozvJh", Email: "a@a", Type: models.CategoryOnline,
			Name: "test3", Amount: 300, Date: "2003-03-03", VAT: "60", Pct: 20,
			Commentary: "", Status: models.StatusAccepted, CommentAdmin: "bon bah d'accord",
			FileURL:  url("https://test.storage.tld/v0/b/billable-677b6/o/justificatifs%2Ffacture-client-php-exportee-dans-document-pdf-enregistre-sur-disque-dur.png?alt=media"),
			FileName: url("facture-client-php-exportee-dans-document-pdf-enregistre-sur-disque-dur.png"),
		},
		{
			ID: "qcCK3SzECmaZAGRrHjaC", Email: "a@a", Type: models.CategoryRestaurants,
			Name: "test2", Amount: 200, Date: "2002-02-02", VAT: "40", Pct: 20,
			Commentary: "test2", Status: models.StatusPending, CommentAdmin: "pas la bonne facture",
			FileURL:  url("https://test.storage.tld/v0/b/billable-677b6/o/justificatifs%2Fpreview-facture-free-201801-pdf-1.jpg?alt=media"),
			FileName: url("preview-facture-free-201801-pdf-1.jpg"),
		},
	}
}
