package config

import "fmt"

func MustNonEmpty(envName, value string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func MustNonEmptyBytes(envName string, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}
