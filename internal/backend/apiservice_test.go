package backend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jo-hoe/gobula/internal/common"
	"github.com/jo-hoe/gobula/internal/core"
	"github.com/labstack/echo/v4"
)

type testImage struct {
	filename string
	data     []byte
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	config := &core.ServiceConfig{
		Database: core.Database{Type: "sqlite", ConnectionString: ":memory:"},
		Images:   core.Images{Type: "filesystem", Directory: filepath.Join(t.TempDir(), "imagens")},
	}
	coreService, err := core.NewCoreService(config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	e.Validator = common.NewGenericEchoValidator()
	e.HTTPErrorHandler = common.HTTPErrorHandler
	e.Use(MetricsMiddleware())
	NewAPIService(coreService).SetRoutes(e)
	return e
}

func newMultipartRequest(t *testing.T, method, target string, fields url.Values, image *testImage) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				t.Fatalf("WriteField error: %v", err)
			}
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("imagem", image.filename)
		if err != nil {
			t.Fatalf("CreateFormFile error: %v", err)
		}
		if _, err := part.Write(image.data); err != nil {
			t.Fatalf("failed to write image part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("multipart writer close error: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(rec.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return value
}

func createBula(t *testing.T, e *echo.Echo, fields url.Values, image *testImage) int64 {
	t.Helper()
	rec := serve(e, newMultipartRequest(t, http.MethodPost, "/bula", fields, image))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /bula status = %d, body = %s", rec.Code, rec.Body.String())
	}
	response := decode[MessageResponse](t, rec)
	if response.Mensagem != mensagemCriada {
		t.Errorf("expected mensagem %q, got %q", mensagemCriada, response.Mensagem)
	}
	if response.ID == nil {
		t.Fatalf("expected id in create response, got %s", rec.Body.String())
	}
	return *response.ID
}

func dipirona() url.Values {
	return url.Values{
		"nome":          {"Dipirona"},
		"descricao":     {"Analgésico"},
		"intervalo_uso": {"6h"},
	}
}

func TestCreateThenGet_Dipirona(t *testing.T) {
	e := newTestServer(t)
	id := createBula(t, e, dipirona(), nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := decode[map[string]any](t, rec)
	want := map[string]any{
		"id":                 float64(id),
		"nome":               "Dipirona",
		"descricao":          "Analgésico",
		"efeitos_colaterais": []any{},
		"controlado":         false,
		"intervalo_uso":      "6h",
		"imagem_base64":      nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GET /bula/%d = %v, want %v", id, got, want)
	}
}

func TestCreateWithImageAndEfeitos(t *testing.T) {
	e := newTestServer(t)
	payload := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x07}
	fields := dipirona()
	fields.Set("efeitos_colaterais", "tontura, nausea,, ")
	fields.Set("controlado", "true")

	id := createBula(t, e, fields, &testImage{filename: "caixa.png", data: payload})

	rec := serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body = %s", rec.Code, rec.Body.String())
	}
	record := decode[core.BulaRecord](t, rec)
	if !reflect.DeepEqual(record.EfeitosColaterais, []string{"tontura", "nausea"}) {
		t.Errorf("efeitos_colaterais = %q, want [tontura nausea]", record.EfeitosColaterais)
	}
	if !record.Controlado {
		t.Error("expected controlado to be true")
	}
	const prefix = "data:image/png;base64,"
	if record.ImagemBase64 == nil || !strings.HasPrefix(*record.ImagemBase64, prefix) {
		t.Fatalf("expected png data URI, got %v", record.ImagemBase64)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(*record.ImagemBase64, prefix))
	if err != nil || !bytes.Equal(decoded, payload) {
		t.Fatalf("decoded image = %v (err %v), want %v", decoded, err, payload)
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d/imagem", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET image status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "image/png" {
		t.Errorf("expected content type image/png, got %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("image body = %v, want %v", rec.Body.Bytes(), payload)
	}
}

func TestCreate_RepeatedEfeitosFields(t *testing.T) {
	e := newTestServer(t)
	fields := dipirona()
	fields["efeitos_colaterais"] = []string{"tontura", "nausea"}

	id := createBula(t, e, fields, nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d", id), nil))
	record := decode[core.BulaRecord](t, rec)
	if !reflect.DeepEqual(record.EfeitosColaterais, []string{"tontura", "nausea"}) {
		t.Errorf("efeitos_colaterais = %q, want [tontura nausea]", record.EfeitosColaterais)
	}
}

func TestCreate_URLEncodedForm(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/bula", strings.NewReader(dipirona().Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantDetail string
	}{
		{
			name:       "missing nome",
			mutate:     func(v url.Values) { v.Del("nome") },
			wantDetail: "Campo 'nome' é obrigatório e deve ser uma string",
		},
		{
			name:       "missing descricao",
			mutate:     func(v url.Values) { v.Del("descricao") },
			wantDetail: "Campo 'descricao' é obrigatório e deve ser uma string",
		},
		{
			name:       "invalid controlado",
			mutate:     func(v url.Values) { v.Set("controlado", "sim") },
			wantDetail: "Campo 'controlado' deve ser um booleano (true ou false)",
		},
		{
			name:       "missing intervalo_uso",
			mutate:     func(v url.Values) { v.Del("intervalo_uso") },
			wantDetail: "Campo 'intervalo_uso' é obrigatório e deve ser uma string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t)
			fields := dipirona()
			tt.mutate(fields)

			rec := serve(e, newMultipartRequest(t, http.MethodPost, "/bula", fields, nil))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
			}
			if got := decode[common.ErrorResponse](t, rec).Detail; got != tt.wantDetail {
				t.Errorf("expected detail %q, got %q", tt.wantDetail, got)
			}

			rec = serve(e, httptest.NewRequest(http.MethodGet, "/bulas", nil))
			if records := decode[[]core.BulaRecord](t, rec); len(records) != 0 {
				t.Errorf("expected nothing persisted, got %d records", len(records))
			}
		})
	}
}

func TestCreate_UndetectableImage(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, newMultipartRequest(t, http.MethodPost, "/bula", dipirona(), &testImage{filename: "blob", data: []byte("??")}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreate_ImageExtensionTooLong(t *testing.T) {
	e := newTestServer(t)

	image := &testImage{filename: "foto." + strings.Repeat("x", 40), data: []byte("??")}
	rec := serve(e, newMultipartRequest(t, http.MethodPost, "/bula", dipirona(), image))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/bulas", nil))
	if got := decode[[]map[string]any](t, rec); len(got) != 0 {
		t.Fatalf("expected no bula to be stored, got %v", got)
	}
}

func TestCreate_JSONBodyRejected(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/bula", strings.NewReader(`{"nome":"Dipirona"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestGet_NotFoundAndInvalidID(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/bula/404", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decode[common.ErrorResponse](t, rec).Detail; got != "Bula não encontrada" {
		t.Errorf("expected detail 'Bula não encontrada', got %q", got)
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/bula/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rec.Code)
	}

	id := createBula(t, e, dipirona(), nil)
	rec = serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d/imagem", id), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing image, got %d", rec.Code)
	}
	if got := decode[common.ErrorResponse](t, rec).Detail; got != "Imagem não encontrada" {
		t.Errorf("expected detail 'Imagem não encontrada', got %q", got)
	}
}

func TestListBulas(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/bulas", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON list, got %d %q", rec.Code, rec.Body.String())
	}

	names := []string{"Dipirona", "Paracetamol", "Ibuprofeno"}
	for _, name := range names {
		fields := dipirona()
		fields.Set("nome", name)
		createBula(t, e, fields, nil)
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/bulas", nil))
	records := decode[[]core.BulaRecord](t, rec)
	if len(records) != len(names) {
		t.Fatalf("expected %d records, got %d", len(names), len(records))
	}
	for i, record := range records {
		if record.Nome != names[i] {
			t.Errorf("records[%d].Nome = %q, want %q", i, record.Nome, names[i])
		}
	}
}

func TestUpdateBula(t *testing.T) {
	e := newTestServer(t)
	fields := dipirona()
	fields.Set("efeitos_colaterais", "tontura")
	fields.Set("controlado", "true")
	id := createBula(t, e, fields, nil)

	update := url.Values{
		"nome":          {"Dipirona Monoidratada"},
		"descricao":     {"Antitérmico"},
		"intervalo_uso": {"8h"},
	}
	rec := serve(e, newMultipartRequest(t, http.MethodPut, fmt.Sprintf("/bula/%d", id), update, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[MessageResponse](t, rec); got.Mensagem != mensagemAtualizada || got.ID != nil {
		t.Errorf("unexpected update response %s", rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d", id), nil))
	record := decode[core.BulaRecord](t, rec)
	want := core.BulaRecord{
		ID:                id,
		Nome:              "Dipirona Monoidratada",
		Descricao:         "Antitérmico",
		EfeitosColaterais: []string{},
		IntervaloUso:      "8h",
	}
	if !reflect.DeepEqual(record, want) {
		t.Fatalf("GET after PUT = %+v, want %+v", record, want)
	}

	rec = serve(e, newMultipartRequest(t, http.MethodPut, "/bula/9999", update, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT on missing id status = %d, want 200", rec.Code)
	}

	rec = serve(e, newMultipartRequest(t, http.MethodPut, fmt.Sprintf("/bula/%d", id), url.Values{"nome": {"x"}}, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("PUT with missing fields status = %d, want 422", rec.Code)
	}
}

func TestDeleteBula(t *testing.T) {
	e := newTestServer(t)
	id := createBula(t, e, dipirona(), nil)

	for _, target := range []string{fmt.Sprintf("/bula/%d", id), "/bula/31337"} {
		rec := serve(e, httptest.NewRequest(http.MethodDelete, target, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("DELETE %s status = %d, body = %s", target, rec.Code, rec.Body.String())
		}
		if got := decode[MessageResponse](t, rec).Mensagem; got != mensagemDeletada {
			t.Errorf("expected mensagem %q, got %q", mensagemDeletada, got)
		}
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/bula/%d", id), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestProbeAndMetrics(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /probe status = %d", rec.Code)
	}

	serve(e, httptest.NewRequest(http.MethodGet, "/bulas", nil))
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	for _, metric := range []string{"gobula_http_requests_total", "gobula_bula_operations_total"} {
		if !strings.Contains(rec.Body.String(), metric) {
			t.Errorf("expected %s in metrics output", metric)
		}
	}
}
