package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"billed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bills", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery, "an unscoped list sends no filter")
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Fixtures())
	}))
	defer srv.Close()

	bills, err := NewHTTPClient(srv.URL, "secret").Bills().List(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Len(t, bills, 4)
	assert.Equal(t, models.StatusRefused, bills[1].Status)
}

func TestHTTPClientListByOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bills", r.URL.Path)
		assert.Equal(t, "a+b@test.tld", r.URL.Query().Get("email"))
		_ = json.NewEncoder(w).Encode([]models.Bill{})
	}))
	defer srv.Close()

	bills, err := NewHTTPClient(srv.URL, "").Bills().List(context.Background(), ListQuery{Email: "a+b@test.tld"})
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestHTTPClientCreateSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "content", string(content))
		assert.Equal(t, "test.jpg", fh.Filename)
		assert.Equal(t, "image/jpeg", fh.Header.Get("Content-Type"))
		assert.Equal(t, "test@example.com", r.FormValue("email"))

		_ = json.NewEncoder(w).Encode(UploadResult{FileURL: "http://files/test.jpg", Key: "1234"})
	}))
	defer srv.Close()

	result, err := NewHTTPClient(srv.URL, "").Bills().Create(context.Background(), CreateRequest{
		File:        strings.NewReader("content"),
		FileName:    "test.jpg",
		ContentType: "image/jpeg",
		Email:       "test@example.com",
		Headers:     Headers{NoContentType: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", result.Key)
	assert.Equal(t, "http://files/test.jpg", result.FileURL)
}

func TestHTTPClientCreateAlwaysLabelsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="),
			"got %q", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "a@a", r.FormValue("email"))
		_ = json.NewEncoder(w).Encode(UploadResult{Key: "1"})
	}))
	defer srv.Close()

	// No NoContentType flag: the body is still multipart and labelled so.
	result, err := NewHTTPClient(srv.URL, "").Bills().Create(context.Background(), CreateRequest{
		File:     strings.NewReader("content"),
		FileName: "test.png",
		Email:    "a@a",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", result.Key)
}

func TestHTTPClientUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/bills/1234", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var b models.Bill
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		b.ID = "1234"
		_ = json.NewEncoder(w).Encode(b)
	}))
	defer srv.Close()

	bill, err := NewHTTPClient(srv.URL, "").Bills().Update(context.Background(), UpdateRequest{
		Selector: "1234",
		Data:     `{"name":"Test bill","amount":100,"status":"pending"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", bill.ID)
	assert.Equal(t, "Test bill", bill.Name)
	assert.Equal(t, 100, bill.Amount)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		check       func(error) bool
	}{
		{"401 empty body", http.StatusUnauthorized, "", "Erreur 401", IsUnauthorized},
		{"404 json message", http.StatusNotFound, `{"message":"Erreur 404"}`, "Erreur 404", IsNotFound},
		{"500 plain text", http.StatusInternalServerError, "Erreur 500\n", "Erreur 500", IsServerError},
		{"500 unknown json", http.StatusInternalServerError, `{"code":12}`, "Erreur 500", IsServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, "").Bills().List(context.Background(), ListQuery{})
			require.Error(t, err)
			assert.Equal(t, tt.wantMessage, err.Error())
			assert.Equal(t, tt.status, StatusOf(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock(Fixtures())

	_, err := m.Bills().List(context.Background(), ListQuery{Email: "a@a"})
	require.NoError(t, err)
	_, err = m.Bills().Create(context.Background(), CreateRequest{File: strings.NewReader("x"), Email: "a@a"})
	require.NoError(t, err)
	_, err = m.Bills().Update(context.Background(), UpdateRequest{Selector: "1234", Data: "{}"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.ListCalls)
	assert.Equal(t, []ListQuery{{Email: "a@a"}}, m.ListQueries)
	require.Len(t, m.CreateCalls, 1)
	assert.Equal(t, []byte("x"), m.CreateCalls[0].Body)
	require.Len(t, m.UpdateCalls, 1)
	assert.Equal(t, "1234", m.UpdateCalls[0].Selector)
}
