package imagestore

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var ErrImageNotFound = errors.New("image not found")

// ImageStore keeps image bytes under flat keys such as "42.png".
type ImageStore interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load returns ErrImageNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete succeeds when nothing is stored under key.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

type Options struct {
	Type      string
	Directory string

	RedisAddress   string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

func NewImageStore(options Options) (ImageStore, error) {
	switch options.Type {
	case "filesystem":
		log.Printf("storing images in directory %s", options.Directory)
		return NewFilesystemStore(options.Directory), nil
	case "redis":
		log.Printf("storing images in redis at %s", options.RedisAddress)
		return NewRedisStore(options.RedisAddress, options.RedisPassword, options.RedisDB, options.RedisKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported image store: %s", options.Type)
	}
}
