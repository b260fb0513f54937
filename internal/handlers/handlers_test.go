package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"billed/internal/models"
	"billed/internal/session"
	"billed/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateDir = "../../web/templates"

type testApp struct {
	mux   *http.ServeMux
	store *store.Mock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	mock := store.NewMock(store.Fixtures())
	jar := session.NewCookieJar([]byte("0123456789abcdef0123456789abcdef"), false)
	mux := http.NewServeMux()
	NewHandlers(mock, jar, templateDir).Register(mux)
	return &testApp{mux: mux, store: mock}
}

func (a *testApp) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, role string, email string) []*http.Cookie {
	t.Helper()
	form := url.Values{"email": {email}, "password": {"azerty"}}
	req := httptest.NewRequest(http.MethodPost, "/login/"+role, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := a.do(req, nil)
	require.Equal(t, http.StatusFound, w.Code, "login should redirect")
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "login should set the session cookie")
	return cookies
}

func htmx(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name    string
		method  string
		path    string
		cookies []*http.Cookie
	}{
		{"bills without cookie", "GET", BillsPath, nil},
		{"new bill without cookie", "GET", NewBillPath, nil},
		{"dashboard without cookie", "GET", DashboardPath, nil},
		{"submit without cookie", "POST", NewBillPath, nil},
		{"bills with tampered cookie", "GET", BillsPath, []*http.Cookie{{Name: session.CookieName, Value: "garbage"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(httptest.NewRequest(tt.method, tt.path, http.NoBody), tt.cookies)
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, LoginPath, w.Header().Get("Location"))
		})
	}
	assert.Zero(t, app.store.ListCalls, "no remote call without a session")
}

func TestLoginPageRendersForms(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/", http.NoBody), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data-testid="form-employee"`)
	assert.Contains(t, body, `data-testid="form-admin"`)
	assert.NotContains(t, body, `data-testid="layout-disconnect"`)
}

func TestHTMXNavigationWithoutSession(t *testing.T) {
	app := newTestApp(t)

	w := app.do(htmx(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path":"/","target":"#content"}`, w.Header().Get("HX-Location"))
	assert.Empty(t, w.Body.String())
}

func TestLoginRedirectsToRoleHome(t *testing.T) {
	app := newTestApp(t)

	cookies := app.login(t, "employee", "employee@test.tld")
	w := app.do(httptest.NewRequest(http.MethodGet, "/", http.NoBody), cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, BillsPath, w.Header().Get("Location"))

	admin := app.login(t, "admin", "admin@test.tld")
	w = app.do(httptest.NewRequest(http.MethodGet, "/", http.NoBody), admin)
	assert.Equal(t, DashboardPath, w.Header().Get("Location"))
}

func TestLoginMissingFields(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/login/employee", strings.NewReader("email=&password="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := app.do(req, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-testid="login-error"`)
	assert.Empty(t, w.Result().Cookies())
}

func TestWrongRoleIsSentHome(t *testing.T) {
	app := newTestApp(t)

	admin := app.login(t, "admin", "admin@test.tld")
	w := app.do(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody), admin)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, DashboardPath, w.Header().Get("Location"))

	employee := app.login(t, "employee", "employee@test.tld")
	w = app.do(httptest.NewRequest(http.MethodGet, DashboardPath, http.NoBody), employee)
	assert.Equal(t, BillsPath, w.Header().Get("Location"))
}

func TestListBills(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	w := app.do(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody), cookies)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Mes notes de frais")
	assert.Equal(t, []store.ListQuery{{Email: "employee@test.tld"}}, app.store.ListQueries, "employees list their own bills")
	assert.Contains(t, body, `data-testid="icon-window" class="active-icon"`)
	assert.NotContains(t, body, `data-testid="icon-mail" class="active-icon"`)
	assert.Contains(t, body, `data-testid="btn-new-bill"`)
	assert.Equal(t, 4, strings.Count(body, `data-testid="icon-eye"`))
	assert.Contains(t, body, "En attente")
	assert.Contains(t, body, "Refusé")
	assert.Contains(t, body, "Accepté")

	// Most recent first.
	dates := []string{"4 Avr. 04", "3 Mar. 03", "2 Fév. 02", "1 Jan. 01"}
	last := -1
	for _, d := range dates {
		i := strings.Index(body, d)
		require.NotEqual(t, -1, i, "missing date %s", d)
		assert.Greater(t, i, last, "date %s out of order", d)
		last = i
	}
}

func TestListBillsErrors(t *testing.T) {
	for _, msg := range []string{"Erreur 401", "Erreur 404", "Erreur 500"} {
		t.Run(msg, func(t *testing.T) {
			app := newTestApp(t)
			app.store.ListFunc = func(context.Context, store.ListQuery) ([]models.Bill, error) {
				return nil, errors.New(msg)
			}
			cookies := app.login(t, "employee", "employee@test.tld")

			w := app.do(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody), cookies)
			require.Equal(t, http.StatusOK, w.Code)
			body := w.Body.String()
			assert.Contains(t, body, msg)
			assert.NotContains(t, body, `data-testid="icon-eye"`, "no partial list on failure")
			assert.Contains(t, body, `data-testid="layout-disconnect"`, "the shell survives the failure")
		})
	}
}

func TestHTMXRenderIsPartialWithShell(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	w := app.do(htmx(httptest.NewRequest(http.MethodGet, NewBillPath, http.NoBody)), cookies)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "<html")
	assert.Contains(t, body, `data-testid="form-new-bill"`)
	assert.Contains(t, body, `hx-swap-oob="true"`)
	assert.Contains(t, body, `data-testid="icon-mail" class="active-icon"`)
}

func TestHistoryRestoreRendersFullPage(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	req := htmx(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody))
	req.Header.Set("HX-History-Restore-Request", "true")
	w := app.do(req, cookies)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<main id="content">`)
	assert.Contains(t, body, "hx-history-elt")
	assert.NotContains(t, body, `hx-swap-oob="true"`)
	assert.Contains(t, body, "Mes notes de frais")
}

func TestHistoryRestoreWithoutSessionRedirects(t *testing.T) {
	app := newTestApp(t)

	req := htmx(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody))
	req.Header.Set("HX-History-Restore-Request", "true")
	w := app.do(req, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
	assert.Empty(t, w.Header().Get("HX-Location"))
}

func TestPreviewProof(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	q := url.Values{"url": {"https://files.tld/proof.jpg"}, "width": {"500"}}
	w := app.do(httptest.NewRequest(http.MethodGet, BillsPath+"/proof?"+q.Encode(), http.NoBody), cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `width="250"`)
	assert.Contains(t, w.Body.String(), `src="https://files.tld/proof.jpg"`)
	assert.Zero(t, app.store.ListCalls, "preview makes no remote call")
}

func uploadRequest(t *testing.T, filename, contentType, content string) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, NewBillPath+"/file", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return htmx(req)
}

func TestUploadProofRejectsUnsupportedType(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	w := app.do(uploadRequest(t, "test.txt", "text/plain", "content"), cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fileRejected":"Ce format de fichier n'est pas accepté"}`, w.Header().Get("HX-Trigger"))
	assert.NotContains(t, w.Body.String(), "fileKey")
	assert.Empty(t, app.store.CreateCalls)
}

func TestUploadProof(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	w := app.do(uploadRequest(t, "test.jpg", "image/jpeg", "jpeg bytes"), cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("HX-Trigger"))

	require.Len(t, app.store.CreateCalls, 1)
	call := app.store.CreateCalls[0]
	assert.Equal(t, "employee@test.tld", call.Request.Email)
	assert.Equal(t, []byte("jpeg bytes"), call.Body)
	assert.Equal(t, "image/jpeg", call.Request.ContentType)

	body := w.Body.String()
	assert.Contains(t, body, `name="fileKey" value="1234"`)
	assert.Contains(t, body, `name="fileName" value="test.jpg"`)
}

func TestSubmitBill(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	form := url.Values{
		"expense-type": {"Transports"},
		"expense-name": {"Test bill"},
		"amount":       {"100"},
		"datepicker":   {"2021-09-01"},
		"fileUrl":      {"https://localhost:3456/images/test.jpg"},
		"fileName":     {"test.jpg"},
		"fileKey":      {"1234"},
	}
	req := htmx(httptest.NewRequest(http.MethodPost, NewBillPath, strings.NewReader(form.Encode())))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := app.do(req, cookies)

	assert.JSONEq(t, `{"path":"/employee/bills","target":"#content"}`, w.Header().Get("HX-Location"))
	require.Len(t, app.store.UpdateCalls, 1)
	assert.Equal(t, "1234", app.store.UpdateCalls[0].Selector)
	assert.JSONEq(t, `{
		"email": "employee@test.tld",
		"type": "Transports",
		"name": "Test bill",
		"amount": 100,
		"date": "2021-09-01",
		"vat": "",
		"pct": 20,
		"commentary": "",
		"fileUrl": "https://localhost:3456/images/test.jpg",
		"fileName": "test.jpg",
		"status": "pending"
	}`, app.store.UpdateCalls[0].Data)
}

func TestSubmitBillFailureStaysOnForm(t *testing.T) {
	app := newTestApp(t)
	app.store.UpdateFunc = func(context.Context, store.UpdateRequest) (*models.Bill, error) {
		return nil, &store.Error{Status: http.StatusInternalServerError, Message: "Erreur 500"}
	}
	cookies := app.login(t, "employee", "employee@test.tld")

	req := htmx(httptest.NewRequest(http.MethodPost, NewBillPath, strings.NewReader("amount=1")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := app.do(req, cookies)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("HX-Location"))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t, "employee", "employee@test.tld")

	w := app.do(httptest.NewRequest(http.MethodPost, "/logout", http.NoBody), cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	// The refreshed cookie no longer carries a user.
	w = app.do(httptest.NewRequest(http.MethodGet, BillsPath, http.NoBody), w.Result().Cookies())
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t)
	admin := app.login(t, "admin", "admin@test.tld")

	w := app.do(httptest.NewRequest(http.MethodGet, DashboardPath, http.NoBody), admin)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "En attente (2)")
	assert.Contains(t, body, "Accepté (1)")
	assert.Contains(t, body, "Refusé (1)")
	assert.Contains(t, body, `data-testid="icon-dashboard" class="active-icon"`)
	assert.Equal(t, []store.ListQuery{{}}, app.store.ListQueries, "admins list every bill")
}
