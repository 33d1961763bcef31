package config

import "time"

type SessionConfig interface {
	GetTokenExpiryDays() int
	GetRequestTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetTokenExpiryDays() int {
	days := GetEnvInt("TOKEN_EXPIRY_DAYS", 7)
	if days == 0 {
		return 7
	}
	return days
}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration("API_REQUEST_TIMEOUT", 15*time.Second)
}
