package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"campus/portal/internal/config"
	"campus/portal/internal/logger"
)

const deviceFile = "device-id"

// DeviceID returns the configured device id, or the one persisted in the
// state dir, generating it on first use.
func DeviceID(cfg config.Config) (string, error) {
	if id := strings.TrimSpace(cfg.DeviceID); id != "" {
		return id, nil
	}
	path := filepath.Join(cfg.StateDir, deviceFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return "", errors.Wrap(err, "creating state dir")
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", errors.Wrap(err, "persisting device id")
	}
	return id, nil
}

// Open builds the configured backend. A backend that cannot be opened falls
// back to memory so the client still runs, just without durability. The
// returned close func is never nil.
func Open(ctx context.Context, cfg config.Config, log logger.Logger) (Storage, func(), error) {
	noop := func() {}
	if cfg.Storage == "memory" {
		return NewMemoryStore(), noop, nil
	}

	deviceID, err := DeviceID(cfg)
	if err != nil {
		log.Warn("device id unavailable, using memory storage", err)
		return NewMemoryStore(), noop, nil
	}

	switch cfg.Storage {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, noop, errors.New("CAMPUS_STORAGE=redis requires REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			log.Warn("redis ping failed, using memory storage", err)
			return NewMemoryStore(), noop, nil
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close error", err)
			}
		}
		return NewRedisStore(client, deviceID), closeFn, nil
	case "file", "":
		store, err := NewFileStore(cfg.StateDir, deviceID)
		if err != nil {
			log.Warn("state dir unavailable, using memory storage", err)
			return NewMemoryStore(), noop, nil
		}
		return store, noop, nil
	default:
		return nil, noop, errors.Errorf("unknown CAMPUS_STORAGE %q", cfg.Storage)
	}
}
