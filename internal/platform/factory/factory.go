// Package factory builds a platform adapter from a configured platform name.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/platform/homeassistant"
	"smarthome_collector/internal/platform/homey"
)

// ErrMissingCredentials is returned when url or token is empty.
var ErrMissingCredentials = errors.New("platform url and token are required")

// UnknownPlatformError reports a platform name outside the alias table.
type UnknownPlatformError struct {
	Name  string
	Valid []string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q (valid: %s)", e.Name, strings.Join(e.Valid, ", "))
}

type constructor func(url, token string, log *logger.Logger) platform.Adapter

var constructors = map[string]constructor{
	homeassistant.PlatformName: func(url, token string, log *logger.Logger) platform.Adapter {
		return homeassistant.New(url, token, log)
	},
	homey.PlatformName: func(url, token string, log *logger.Logger) platform.Adapter {
		return homey.New(url, token, log)
	},
}

var aliases = map[string]string{
	"ha":             homeassistant.PlatformName,
	"home_assistant": homeassistant.PlatformName,
	"homeassistant":  homeassistant.PlatformName,
	"homey":          homey.PlatformName,
	"homey_pro":      homey.PlatformName,
}

// Create returns the adapter for name. Credentials are checked before the name
// and no request is made.
func Create(name, url, token string, log *logger.Logger) (platform.Adapter, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(token) == "" {
		log.OrNop().Errorw("platform_credentials_missing", "platform", name)
		return nil, ErrMissingCredentials
	}

	canonical, ok := aliases[Normalize(name)]
	if !ok {
		err := &UnknownPlatformError{Name: name, Valid: ValidNames()}
		log.OrNop().Errorw("platform_unknown", "platform", name, "valid", err.Valid)
		return nil, err
	}
	return constructors[canonical](url, token, log), nil
}

// Normalize lowercases name, trims it and replaces spaces with underscores.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ValidNames lists every accepted alias, sorted.
func ValidNames() []string {
	names := make([]string, 0, len(aliases))
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
