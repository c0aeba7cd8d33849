package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arqvault/threatmodel/internal/imagestore"
	"github.com/arqvault/threatmodel/internal/lifecycle"
	"github.com/arqvault/threatmodel/internal/repository"
)

func newTestIntakeServer(t *testing.T) *IntakeServer {
	t.Helper()
	store, err := imagestore.New(t.TempDir())
	require.NoError(t, err)
	manager := lifecycle.New(repository.NewMemoryRepository(), store, 1024*1024, []string{"image/png", "image/jpeg"})
	return NewIntakeServer(manager, nil)
}

func multipartPNG(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "diagram.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfakepixels"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSubmitHandlerHappyPath(t *testing.T) {
	s := newTestIntakeServer(t)
	body, contentType := multipartPNG(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "OPEN", string(resp.Status))
	require.Regexp(t, `^TMA-\d{8}$`, resp.Code)
}

func TestSubmitHandlerRejectsEmptyUpload(t *testing.T) {
	s := newTestIntakeServer(t)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "empty.png")
	require.NoError(t, err)
	_, _ = part.Write(nil)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "empty")
}

func TestGetAndDeleteAnalysisLifecycle(t *testing.T) {
	s := newTestIntakeServer(t)
	body, contentType := multipartPNG(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	s.echo.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/analyses/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	s.echo.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusNoContent, delRec.Code)

	missingReq := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.ID, nil)
	missingRec := httptest.NewRecorder()
	s.echo.ServeHTTP(missingRec, missingReq)
	require.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestListHandlerReturnsEnvelope(t *testing.T) {
	s := newTestIntakeServer(t)
	body, contentType := multipartPNG(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?page=1&size=10", nil)
	listRec := httptest.NewRecorder()
	s.echo.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var list ListResponse
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
}
