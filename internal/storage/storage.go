package storage

import (
	"context"
	"geohost/internal/types"
)

type (
	Storage interface {
		Save(ctx context.Context, location string, f types.File) error
		Get(ctx context.Context, location string) (*types.File, error)
		Ping(ctx context.Context) error
	}

	Credentials struct {
		Endpoint    string
		AccessKeyID string
		SecretKey   string
		Region      string
		Bucket      string
		Secure      bool
	}
)
