package tab

import (
	"context"
	"fmt"

	"github.com/jrsteele09/tutorhub-web/broadcast"
	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backends are the durable storage and broadcast channel shared by the tabs
// of one browser profile.
type Backends struct {
	Store storage.Store
	// NewChannel returns the broadcast channel of a new tab
	NewChannel func() broadcast.Channel
	Close      func() error
}

// OpenBackends builds the storage backend named by cfg. Memory and file
// backends broadcast within this process only; Redis reaches every process
// sharing the server.
func OpenBackends(ctx context.Context, cfg config.Config, log zerolog.Logger) (Backends, error) {
	switch cfg.GetStorageBackend() {
	case config.StorageMemory:
		hub := broadcast.NewMemoryHub()
		return Backends{
			Store:      storage.NewMemoryStore(),
			NewChannel: func() broadcast.Channel { return hub.Join("") },
			Close:      func() error { return nil },
		}, nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return Backends{}, fmt.Errorf("[tab.OpenBackends] redis %s: %w", cfg.GetRedisAddr(), err)
		}
		ns := cfg.GetProjectID()
		return Backends{
			Store:      storage.NewRedisStore(client, ns),
			NewChannel: func() broadcast.Channel { return broadcast.NewRedisChannel(client, ns, "", log) },
			Close:      client.Close,
		}, nil

	default:
		store, err := storage.NewFileStore(cfg.GetDataFolder())
		if err != nil {
			return Backends{}, fmt.Errorf("[tab.OpenBackends] file store: %w", err)
		}
		hub := broadcast.NewMemoryHub()
		return Backends{
			Store:      store,
			NewChannel: func() broadcast.Channel { return hub.Join("") },
			Close:      func() error { return nil },
		}, nil
	}
}
