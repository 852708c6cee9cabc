package config

import "fmt"

func RequireNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func RequireNonEmptyBytes(value []byte, envName string) error {
	if len(value) == 0 {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}
