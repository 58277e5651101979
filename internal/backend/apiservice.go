package backend

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/jo-hoe/gobula/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	mensagemCriada     = "Bula criada com sucesso"
	mensagemAtualizada = "Bula atualizada com sucesso"
	mensagemDeletada   = "Bula deletada com sucesso"

	detailBulaNotFound    = "Bula não encontrada"
	detailImageNotFound   = "Imagem não encontrada"
	detailInvalidImage    = "Campo 'imagem' deve ser um arquivo de imagem com extensão"
	detailInvalidID       = "Parâmetro 'id' deve ser um número inteiro"
	detailUnsupportedMIME = "Corpo da requisição deve ser multipart/form-data ou application/x-www-form-urlencoded"

	imageFormField = "imagem"
)

type APIService struct {
	coreService *core.CoreService
}

// bulaRequest is the form contract shared by create and edit.
// Field order is the order in which validation failures are reported.
type bulaRequest struct {
	Nome              string   `form:"nome" validate:"required"`
	Descricao         string   `form:"descricao" validate:"required"`
	EfeitosColaterais []string `form:"efeitos_colaterais"`
	Controlado        string   `form:"controlado" validate:"omitempty,booleano"`
	IntervaloUso      string   `form:"intervalo_uso" validate:"required"`
}

type MessageResponse struct {
	Mensagem string `json:"mensagem"`
	ID       *int64 `json:"id,omitempty"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/bula", s.createBulaHandler)
	e.GET("/bula/:id", s.getBulaHandler)
	e.GET("/bula/:id/imagem", s.getBulaImageHandler)
	e.GET("/bulas", s.listBulasHandler)
	e.PUT("/bula/:id", s.updateBulaHandler)
	e.DELETE("/bula/:id", s.deleteBulaHandler)
}

func (s *APIService) createBulaHandler(ctx echo.Context) error {
	input, err := bindBulaInput(ctx)
	if err != nil {
		return err
	}

	id, err := s.coreService.CreateBula(ctx.Request().Context(), input)
	recordOperation("create", err)
	if err != nil {
		slog.Error("createBulaHandler: failed to create bula", "error", err, "nome", input.Nome)
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Mensagem: mensagemCriada, ID: &id})
}

func (s *APIService) getBulaHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	record, err := s.coreService.GetBula(ctx.Request().Context(), id)
	recordOperation("get", err)
	if err != nil {
		if !errors.Is(err, core.ErrBulaNotFound) {
			slog.Error("getBulaHandler: failed to fetch bula", "bula_id", id, "error", err)
		}
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, record)
}

func (s *APIService) getBulaImageHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	image, err := s.coreService.GetBulaImage(ctx.Request().Context(), id)
	recordOperation("get_image", err)
	if err != nil {
		if !errors.Is(err, core.ErrBulaNotFound) && !errors.Is(err, core.ErrImageNotFound) {
			slog.Error("getBulaImageHandler: failed to load image", "bula_id", id, "error", err)
		}
		return toHTTPError(err)
	}

	contentType := mime.TypeByExtension("." + image.Extension)
	if contentType == "" {
		contentType = http.DetectContentType(image.Data)
	}
	return ctx.Blob(http.StatusOK, contentType, image.Data)
}

func (s *APIService) listBulasHandler(ctx echo.Context) error {
	records, err := s.coreService.ListBulas(ctx.Request().Context())
	recordOperation("list", err)
	if err != nil {
		slog.Error("listBulasHandler: failed to list bulas", "error", err)
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, records)
}

func (s *APIService) updateBulaHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}
	input, err := bindBulaInput(ctx)
	if err != nil {
		return err
	}

	err = s.coreService.UpdateBula(ctx.Request().Context(), id, input)
	recordOperation("update", err)
	if err != nil {
		slog.Error("updateBulaHandler: failed to update bula", "bula_id", id, "error", err)
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Mensagem: mensagemAtualizada})
}

func (s *APIService) deleteBulaHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	err = s.coreService.DeleteBula(ctx.Request().Context(), id)
	recordOperation("delete", err)
	if err != nil {
		slog.Error("deleteBulaHandler: failed to delete bula", "bula_id", id, "error", err)
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Mensagem: mensagemDeletada})
}

func parseID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, detailInvalidID)
	}
	return id, nil
}

func bindBulaInput(ctx echo.Context) (core.BulaInput, error) {
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if contentType != "" &&
		!strings.HasPrefix(contentType, echo.MIMEMultipartForm) &&
		!strings.HasPrefix(contentType, echo.MIMEApplicationForm) {
		return core.BulaInput{}, echo.NewHTTPError(http.StatusUnsupportedMediaType, detailUnsupportedMIME)
	}

	var request bulaRequest
	if err := ctx.Bind(&request); err != nil {
		return core.BulaInput{}, err
	}
	if err := ctx.Validate(&request); err != nil {
		return core.BulaInput{}, err
	}

	controlado := false
	if value := strings.TrimSpace(request.Controlado); value != "" {
		// already checked by the booleano validation
		controlado, _ = strconv.ParseBool(value)
	}

	image, err := readImage(ctx)
	if err != nil {
		return core.BulaInput{}, err
	}

	return core.BulaInput{
		Nome:              request.Nome,
		Descricao:         request.Descricao,
		EfeitosColaterais: core.ParseEfeitosColaterais(request.EfeitosColaterais...),
		Controlado:        controlado,
		IntervaloUso:      request.IntervaloUso,
		Imagem:            image,
	}, nil
}

// readImage returns nil when the request carries no image.
func readImage(ctx echo.Context) (*core.ImageUpload, error) {
	file, err := ctx.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		slog.Warn("readImage: failed to get uploaded file", "status", http.StatusBadRequest, "error", err)
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Falha ao ler o campo 'imagem'")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("readImage: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return nil, echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("readImage: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("readImage: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return nil, echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}

	return &core.ImageUpload{Filename: file.Filename, Data: data}, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, core.ErrBulaNotFound):
		return echo.NewHTTPError(http.StatusNotFound, detailBulaNotFound)
	case errors.Is(err, core.ErrImageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, detailImageNotFound)
	case errors.Is(err, core.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detailInvalidImage)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
