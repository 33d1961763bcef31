package server

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

func colourMethod(method string) string {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return color + fmt.Sprintf(" %-7s", method) + ResetColor
}

func logRoute(log zerolog.Logger, method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(log zerolog.Logger, method, path string, err error) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor)
}

// cutRoute splits "GET /path" into its method and path
func cutRoute(route string) (method, path string) {
	method, path, ok := strings.Cut(route, " ")
	if !ok {
		return "", route
	}
	return method, path
}
