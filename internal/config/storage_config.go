package config

type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetDataFolder() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageBackend selects where tokens and persisted slices live.
// Redis is required for logout broadcasts to reach other processes.
func (Storage) GetStorageBackend() StorageBackend {
	switch StorageBackend(GetEnv("STORAGE_BACKEND", string(StorageFile))) {
	case StorageMemory:
		return StorageMemory
	case StorageRedis:
		return StorageRedis
	default:
		return StorageFile
	}
}

func (Storage) GetDataFolder() string {
	return GetEnv("DATA_FOLDER", "./data")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "127.0.0.1:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}
