package storage

import (
	"fmt"

	"go.uber.org/zap"

	"sxbin-backend/internal/config"
)

func NewObjectStore(cfg *config.Config, logger *zap.Logger) (ObjectStore, error) {
	poolTTL, err := cfg.GetPoolTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid pool ttl: %w", err)
	}

	switch cfg.Storage.Type {
	case "s3":
		return NewS3Backend(&cfg.S3), nil
	case "smb":
		return NewSMBBackend(&cfg.SMB, poolTTL, logger), nil
	case "nfs":
		return NewNFSBackend(&cfg.NFS, poolTTL, logger), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}
