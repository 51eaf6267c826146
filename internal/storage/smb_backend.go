package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hirochachacha/go-smb2"
	"go.uber.org/zap"

	"sxbin-backend/internal/config"
)

// SMBBackend stores objects as files on a Windows/Samba share, each with a JSON
// metadata sidecar. All calls share one service-account session.
type SMBBackend struct {
	config *config.SMBConfig
	pool   *GenericConnectionPool
	logger *zap.Logger
}

type SMBConnection struct {
	session *smb2.Session
	share   *smb2.Share
}

func NewSMBBackend(cfg *config.SMBConfig, poolTTL time.Duration, logger *zap.Logger) *SMBBackend {
	b := &SMBBackend{config: cfg, logger: logger.Named("smb")}
	b.pool = NewGenericConnectionPool(b.connect, b.closeConnection, poolTTL)
	return b
}

func (b *SMBBackend) GetName() string {
	return "smb"
}

func (b *SMBBackend) connect(account string) (Connection, error) {
	address := net.JoinHostPort(b.config.Server, fmt.Sprintf("%d", b.config.Port))
	b.logger.Debug("connecting", zap.String("address", address), zap.String("user", account), zap.String("share", b.config.Share))

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMB server: %w", err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     account,
			Password: b.config.Password,
			Domain:   b.config.Domain,
		},
	}

	session, err := d.Dial(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SMB session: %w", err)
	}

	share, err := session.Mount(b.config.Share)
	if err != nil {
		session.Logoff()
		return nil, fmt.Errorf("failed to mount share '%s': %w", b.config.Share, err)
	}

	b.logger.Info("connected", zap.String("share", b.config.Share))
	return &SMBConnection{session: session, share: share}, nil
}

func (b *SMBBackend) closeConnection(conn Connection) error {
	if conn == nil {
		return nil
	}
	smbConn := conn.(*SMBConnection)
	smbConn.share.Umount()
	return smbConn.session.Logoff()
}

func (b *SMBBackend) withShare(fn func(share *smb2.Share) error) error {
	conn, err := b.pool.GetConnection(b.config.User)
	if err != nil {
		return err
	}

	err = fn(conn.(*SMBConnection).share)
	if err != nil && err != ErrObjectNotFound {
		b.pool.Invalidate(b.config.User)
	}
	return err
}

func (b *SMBBackend) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid object key %q", key)
	}
	meta, err := encodeSidecar(contentType, metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	return b.withShare(func(share *smb2.Share) error {
		if err := b.ensureDirectory(share, b.config.Path); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
		if err := share.WriteFile(b.fullPath(key), data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		if err := share.WriteFile(b.fullPath(key)+sidecarSuffix, meta, 0644); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		return nil
	})
}

func (b *SMBBackend) Get(ctx context.Context, key string) (*Object, error) {
	if !validKey(key) {
		return nil, ErrObjectNotFound
	}

	var obj *Object
	err := b.withShare(func(share *smb2.Share) error {
		if err := b.stat(share, key); err != nil {
			return err
		}

		data, err := readAll(share, b.fullPath(key))
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		metaData, err := readAll(share, b.fullPath(key)+sidecarSuffix)
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

func (b *SMBBackend) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrObjectNotFound
	}

	return b.withShare(func(share *smb2.Share) error {
		if err := b.stat(share, key); err != nil {
			return err
		}
		if err := share.Remove(b.fullPath(key)); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		if err := share.Remove(b.fullPath(key) + sidecarSuffix); err != nil {
			b.logger.Warn("failed to delete metadata sidecar", zap.String("key", key), zap.Error(err))
		}
		return nil
	})
}

func (b *SMBBackend) ReplaceMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if !validKey(key) {
		return ErrObjectNotFound
	}

	return b.withShare(func(share *smb2.Share) error {
		metaData, err := readAll(share, b.fullPath(key)+sidecarSuffix)
		if err != nil {
			if statErr := b.stat(share, key); errors.Is(statErr, ErrObjectNotFound) {
				return ErrObjectNotFound
			}
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
		if err := share.WriteFile(b.fullPath(key)+sidecarSuffix, updated, 0644); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		return nil
	})
}

func (b *SMBBackend) Close() error {
	b.pool.Close()
	return nil
}

func (b *SMBBackend) fullPath(key string) string {
	return joinPath(b.config.Path, key)
}

func (b *SMBBackend) stat(share *smb2.Share, key string) error {
	return statObject(share.Stat, b.fullPath(key))
}

func (b *SMBBackend) ensureDirectory(share *smb2.Share, path string) error {
	if path == "" {
		return nil
	}

	file, err := share.Open(path)
	if err == nil {
		file.Close()
		return nil
	}

	if err := share.MkdirAll(path, 0755); err != nil {
		if file, openErr := share.Open(path); openErr == nil {
			file.Close()
			return nil
		}
		return fmt.Errorf("failed to access or create directory %s: %w", path, err)
	}

	b.logger.Info("created storage directory", zap.String("path", path))
	return nil
}

func readAll(share *smb2.Share, path string) ([]byte, error) {
	file, err := share.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
