package common

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func fileExists(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}

func ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

// ValidateServerConfig sanity-checks the server section before boot. Strict
// mode is for `config test`; boot uses non-strict so dev defaults apply.
func ValidateServerConfig(v *viper.Viper, strict bool) error {
	if sub := v.Sub("server"); sub != nil {
		v = sub
	}
	if err := ValidateAddr(v.GetString("http_addr")); err != nil {
		return fmt.Errorf("http_addr: %w", err)
	}
	if strict && v.GetString("jwt_secret") == "" {
		return fmt.Errorf("jwt_secret missing")
	}
	switch d := strings.ToLower(v.GetString("notify.driver")); d {
	case "", "noop":
	case "redis":
		if strict && v.GetString("notify.url") == "" {
			return fmt.Errorf("notify.url missing for redis driver")
		}
	case "kafka":
		if strict && v.GetString("notify.brokers") == "" {
			return fmt.Errorf("notify.brokers missing for kafka driver")
		}
	default:
		return fmt.Errorf("notify.driver: unknown driver %q", d)
	}
	// casbin policy files must exist when configured
	if m := v.GetString("rbac.model"); m != "" {
		if err := fileExists(m); err != nil {
			return fmt.Errorf("rbac.model: %w", err)
		}
		if err := fileExists(v.GetString("rbac.policy")); err != nil {
			return fmt.Errorf("rbac.policy: %w", err)
		}
	}
	return nil
}

// ValidateSweeperConfig checks the sweeper section.
func ValidateSweeperConfig(v *viper.Viper, strict bool) error {
	if sub := v.Sub("sweeper"); sub != nil {
		v = sub
	}
	if iv := v.GetString("interval"); iv != "" {
		if _, err := time.ParseDuration(iv); err != nil {
			return fmt.Errorf("interval: %w", err)
		}
	} else if strict {
		return fmt.Errorf("interval missing")
	}
	return nil
}
