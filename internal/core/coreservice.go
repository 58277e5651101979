package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jo-hoe/gobula/internal/backend/database"
	"github.com/jo-hoe/gobula/internal/backend/imagestore"
)

var (
	ErrBulaNotFound  = errors.New("bula não encontrada")
	ErrImageNotFound = errors.New("imagem não encontrada")
	ErrInvalidImage  = errors.New("imagem inválida")
)

const efeitosSeparator = ","

// BulaInput holds the client supplied fields of a create or edit.
type BulaInput struct {
	Nome              string
	Descricao         string
	EfeitosColaterais []string
	Controlado        bool
	IntervaloUso      string
	Imagem            *ImageUpload
}

type ImageUpload struct {
	Filename string
	Data     []byte
}

// BulaRecord is the representation of a bula returned to clients.
type BulaRecord struct {
	ID                int64    `json:"id"`
	Nome              string   `json:"nome"`
	Descricao         string   `json:"descricao"`
	EfeitosColaterais []string `json:"efeitos_colaterais"`
	Controlado        bool     `json:"controlado"`
	IntervaloUso      string   `json:"intervalo_uso"`
	ImagemBase64      *string  `json:"imagem_base64"`
}

type Image struct {
	Extension string
	Data      []byte
}

// DataURI encodes the image as data:image/<ext>;base64,<payload>.
func (image *Image) DataURI() string {
	return "data:image/" + image.Extension + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	imageStore      imagestore.ImageStore
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	imageStore, err := getImageStore(config)
	if err != nil {
		_ = databaseService.Close()
		return nil, err
	}
	return newCoreService(config, databaseService, imageStore), nil
}

func newCoreService(config *ServiceConfig, databaseService database.DatabaseService, imageStore imagestore.ImageStore) *CoreService {
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		imageStore:      imageStore,
	}
}

// ParseEfeitosColaterais splits every value on commas, trims the tokens and drops empty ones.
func ParseEfeitosColaterais(values ...string) []string {
	efeitos := make([]string, 0, len(values))
	for _, value := range values {
		for _, token := range strings.Split(value, efeitosSeparator) {
			if token = strings.TrimSpace(token); token != "" {
				efeitos = append(efeitos, token)
			}
		}
	}
	return efeitos
}

func (service *CoreService) CreateBula(ctx context.Context, input BulaInput) (int64, error) {
	row := toRow(0, input)

	var extension string
	if input.Imagem != nil {
		var err error
		extension, err = imagestore.Extension(input.Imagem.Filename, input.Imagem.Data)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		row.ImagemExtensao = extension
	}

	id, err := service.databaseService.CreateBula(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bula: %w", err)
	}

	if input.Imagem != nil {
		if err := service.imageStore.Save(ctx, imagestore.Key(id, extension), input.Imagem.Data); err != nil {
			// undo the insert so no row references an image that was never written
			if deleteErr := service.databaseService.DeleteBula(context.WithoutCancel(ctx), id); deleteErr != nil {
				slog.Error("failed to remove bula after image write failure", "bula_id", id, "error", deleteErr)
			}
			return 0, fmt.Errorf("failed to store image of bula %d: %w", id, err)
		}
	}

	slog.Info("bula created", "bula_id", id, "image_extension", extension)
	return id, nil
}

func (service *CoreService) GetBula(ctx context.Context, id int64) (*BulaRecord, error) {
	row, err := service.databaseService.GetBulaByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bula %d: %w", id, err)
	}
	if row == nil {
		return nil, ErrBulaNotFound
	}
	return service.toRecord(ctx, row)
}

func (service *CoreService) ListBulas(ctx context.Context) ([]*BulaRecord, error) {
	rows, err := service.databaseService.GetAllBulas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bulas: %w", err)
	}

	records := make([]*BulaRecord, 0, len(rows))
	for _, row := range rows {
		record, err := service.toRecord(ctx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// UpdateBula overwrites all fields of bula id. A missing id is not an error.
func (service *CoreService) UpdateBula(ctx context.Context, id int64, input BulaInput) error {
	var extension string
	if input.Imagem != nil {
		var err error
		extension, err = imagestore.Extension(input.Imagem.Filename, input.Imagem.Data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
	}

	if err := service.databaseService.UpdateBula(ctx, toRow(id, input)); err != nil {
		return fmt.Errorf("failed to update bula %d: %w", id, err)
	}

	if input.Imagem == nil {
		return nil
	}
	return service.replaceImage(ctx, id, extension, input.Imagem.Data)
}

func (service *CoreService) replaceImage(ctx context.Context, id int64, extension string, data []byte) error {
	row, err := service.databaseService.GetBulaByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch bula %d: %w", id, err)
	}
	if row == nil {
		slog.Warn("ignoring image of missing bula", "bula_id", id)
		return nil
	}

	if err := service.imageStore.Save(ctx, imagestore.Key(id, extension), data); err != nil {
		return fmt.Errorf("failed to store image of bula %d: %w", id, err)
	}
	if err := service.databaseService.SetImageExtension(ctx, id, extension); err != nil {
		return fmt.Errorf("failed to record image extension of bula %d: %w", id, err)
	}

	for _, stale := range candidateExtensions(row.ImagemExtensao) {
		if stale == extension {
			continue
		}
		if err := service.imageStore.Delete(ctx, imagestore.Key(id, stale)); err != nil {
			slog.Warn("failed to remove previous image", "bula_id", id, "extension", stale, "error", err)
		}
	}
	return nil
}

// DeleteBula removes the row of bula id. Its image is removed only when images.deleteWithRecord is set.
func (service *CoreService) DeleteBula(ctx context.Context, id int64) error {
	var row *database.Bula
	if service.config.Images.DeleteWithRecord {
		var err error
		row, err = service.databaseService.GetBulaByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to fetch bula %d: %w", id, err)
		}
	}

	if err := service.databaseService.DeleteBula(ctx, id); err != nil {
		return fmt.Errorf("failed to delete bula %d: %w", id, err)
	}

	if row != nil {
		for _, extension := range candidateExtensions(row.ImagemExtensao) {
			if err := service.imageStore.Delete(ctx, imagestore.Key(id, extension)); err != nil {
				return fmt.Errorf("failed to delete image of bula %d: %w", id, err)
			}
		}
	}
	return nil
}

func (service *CoreService) GetBulaImage(ctx context.Context, id int64) (*Image, error) {
	row, err := service.databaseService.GetBulaByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bula %d: %w", id, err)
	}
	if row == nil {
		return nil, ErrBulaNotFound
	}

	image, err := service.loadImage(ctx, row)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, ErrImageNotFound
	}
	return image, nil
}

func (service *CoreService) Close() error {
	return errors.Join(service.databaseService.Close(), service.imageStore.Close())
}

// loadImage returns nil when the bula has no image.
func (service *CoreService) loadImage(ctx context.Context, row *database.Bula) (*Image, error) {
	for _, extension := range candidateExtensions(row.ImagemExtensao) {
		data, err := service.imageStore.Load(ctx, imagestore.Key(row.ID, extension))
		if errors.Is(err, imagestore.ErrImageNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load image of bula %d: %w", row.ID, err)
		}
		return &Image{Extension: extension, Data: data}, nil
	}

	if row.ImagemExtensao != "" {
		slog.Warn("image of bula is missing from the image store", "bula_id", row.ID, "extension", row.ImagemExtensao)
	}
	return nil, nil
}

func (service *CoreService) toRecord(ctx context.Context, row *database.Bula) (*BulaRecord, error) {
	record := &BulaRecord{
		ID:                row.ID,
		Nome:              row.Nome,
		Descricao:         row.Descricao,
		EfeitosColaterais: ParseEfeitosColaterais(row.EfeitosColaterais),
		Controlado:        row.Controlado != 0,
		IntervaloUso:      row.IntervaloUso,
	}

	image, err := service.loadImage(ctx, row)
	if err != nil {
		return nil, err
	}
	if image != nil {
		dataURI := image.DataURI()
		record.ImagemBase64 = &dataURI
	}
	return record, nil
}

func toRow(id int64, input BulaInput) *database.Bula {
	controlado := 0
	if input.Controlado {
		controlado = 1
	}
	return &database.Bula{
		ID:                id,
		Nome:              input.Nome,
		Descricao:         input.Descricao,
		EfeitosColaterais: strings.Join(ParseEfeitosColaterais(input.EfeitosColaterais...), efeitosSeparator),
		Controlado:        controlado,
		IntervaloUso:      input.IntervaloUso,
	}
}

// candidateExtensions returns the recorded extension, or the probe order for rows that never recorded one.
func candidateExtensions(recorded string) []string {
	if recorded != "" {
		return []string{recorded}
	}
	return imagestore.ProbeExtensions
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func getImageStore(config *ServiceConfig) (imagestore.ImageStore, error) {
	imageStore, err := imagestore.NewImageStore(imagestore.Options{
		Type:           config.Images.Type,
		Directory:      config.Images.Directory,
		RedisAddress:   config.Images.Redis.Address,
		RedisPassword:  config.Images.Redis.Password,
		RedisDB:        config.Images.Redis.DB,
		RedisKeyPrefix: config.Images.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}
	return imageStore, nil
}
