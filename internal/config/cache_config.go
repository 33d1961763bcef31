package config

import "time"

type CacheConfig interface {
	GetQueryStaleTime() time.Duration
	GetQueryRetry() int
	GetQueryRetryDelay() time.Duration
}

type Cache struct{}

var _ CacheConfig = Cache{}

func (Cache) GetQueryStaleTime() time.Duration {
	return GetEnvDuration("QUERY_STALE_TIME", 5*time.Minute)
}

func (Cache) GetQueryRetry() int {
	return GetEnvInt("QUERY_RETRY", 1)
}

func (Cache) GetQueryRetryDelay() time.Duration {
	return GetEnvDuration("QUERY_RETRY_DELAY", 1*time.Second)
}
