package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"time"

	nfs "github.com/vmware/go-nfs-client/nfs"
	"github.com/vmware/go-nfs-client/nfs/rpc"
	"go.uber.org/zap"

	"sxbin-backend/internal/config"
)

// NFSBackend stores objects as files on an NFSv3 export, each with a JSON
// metadata sidecar.
type NFSBackend struct {
	config *config.NFSConfig
	pool   *GenericConnectionPool
	logger *zap.Logger
}

type NFSConnection struct {
	mount  *nfs.Mount
	target *nfs.Target
}

func NewNFSBackend(cfg *config.NFSConfig, poolTTL time.Duration, logger *zap.Logger) *NFSBackend {
	b := &NFSBackend{config: cfg, logger: logger.Named("nfs")}
	b.pool = NewGenericConnectionPool(b.connect, b.closeConnection, poolTTL)
	return b
}

func (b *NFSBackend) GetName() string {
	return "nfs"
}

func (b *NFSBackend) account() string {
	return fmt.Sprintf("%d:%d", b.config.UID, b.config.GID)
}

func (b *NFSBackend) connect(account string) (Connection, error) {
	mount, err := nfs.DialMount(b.config.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NFS server: %w", err)
	}

	auth := rpc.NewAuthUnix("sxbin", b.config.UID, b.config.GID)

	target, err := mount.Mount(b.config.Export, auth.Auth())
	if err != nil {
		mount.Close()
		return nil, fmt.Errorf("failed to mount NFS export: %w", err)
	}

	b.logger.Info("mounted export", zap.String("server", b.config.Server), zap.String("export", b.config.Export))
	return &NFSConnection{mount: mount, target: target}, nil
}

func (b *NFSBackend) closeConnection(conn Connection) error {
	if conn == nil {
		return nil
	}
	nfsConn := conn.(*NFSConnection)
	nfsConn.target.Close()
	nfsConn.mount.Close()
	return nil
}

func (b *NFSBackend) withTarget(fn func(target *nfs.Target) error) error {
	conn, err := b.pool.GetConnection(b.account())
	if err != nil {
		return err
	}

	err = fn(conn.(*NFSConnection).target)
	if err != nil && err != ErrObjectNotFound {
		b.pool.Invalidate(b.account())
	}
	return err
}

func (b *NFSBackend) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid object key %q", key)
	}
	meta, err := encodeSidecar(contentType, metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	return b.withTarget(func(target *nfs.Target) error {
		b.ensureDirectory(target, b.config.Path)

		if err := writeFile(target, b.fullPath(key), data); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		if err := writeFile(target, b.fullPath(key)+sidecarSuffix, meta); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		return nil
	})
}

func (b *NFSBackend) Get(ctx context.Context, key string) (*Object, error) {
	if !validKey(key) {
		return nil, ErrObjectNotFound
	}

	var obj *Object
	err := b.withTarget(func(target *nfs.Target) error {
		if err := b.stat(target, key); err != nil {
			return err
		}

		data, err := readFile(target, b.fullPath(key))
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		metaData, err := readFile(target, b.fullPath(key)+sidecarSuffix)
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		meta, err := decodeSidecar(metaData)
		if err != nil {
			return fmt.Errorf("failed to decode metadata: %w", err)
		}

		obj = &Object{Data: data, ContentType: meta.ContentType, Metadata: meta.Metadata}
		return nil
	})
	return obj, err
}

func (b *NFSBackend) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrObjectNotFound
	}

	return b.withTarget(func(target *nfs.Target) error {
		if err := b.stat(target, key); err != nil {
			return err
		}
		if err := target.Remove(b.fullPath(key)); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		if err := target.Remove(b.fullPath(key) + sidecarSuffix); err != nil {
			b.logger.Warn("failed to delete metadata sidecar", zap.String("key", key), zap.Error(err))
		}
		return nil
	})
}

func (b *NFSBackend) ReplaceMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if !validKey(key) {
		return ErrObjectNotFound
	}

	return b.withTarget(func(target *nfs.Target) error {
		if err := b.stat(target, key); err != nil {
			return err
		}

		metaData, err := readFile(target, b.fullPath(key)+sidecarSuffix)
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		current, err := decodeSidecar(metaData)
		if err != nil {
			return fmt.Errorf("failed to decode metadata: %w", err)
		}
		updated, err := encodeSidecar(current.ContentType, metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		// OpenFile does not truncate, so the old sidecar goes first.
		if err := target.Remove(b.fullPath(key) + sidecarSuffix); err != nil {
			return fmt.Errorf("failed to replace metadata: %w", err)
		}
		if err := writeFile(target, b.fullPath(key)+sidecarSuffix, updated); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		return nil
	})
}

func (b *NFSBackend) Close() error {
	b.pool.Close()
	return nil
}

func (b *NFSBackend) fullPath(key string) string {
	return joinPath(b.config.Path, key)
}

func (b *NFSBackend) stat(target *nfs.Target, key string) error {
	lookup := func(name string) (fs.FileInfo, error) {
		info, _, err := target.Lookup(name)
		return info, err
	}
	return statObject(lookup, b.fullPath(key))
}

// ensureDirectory ignores Mkdir errors; an existing directory reports one too.
func (b *NFSBackend) ensureDirectory(target *nfs.Target, path string) {
	if path == "" {
		return
	}
	target.Mkdir(path, 0755)
}

func writeFile(target *nfs.Target, path string, data []byte) error {
	file, err := target.OpenFile(path, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write(data)
	return err
}

func readFile(target *nfs.Target, path string) ([]byte, error) {
	file, err := target.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
