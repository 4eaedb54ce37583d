package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotenv reads a .env file from the working directory if there is
// one. Values already present in the environment take precedence.
func LoadDotenv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func GetenvStr(key string) string {
	return os.Getenv(key)
}

// GetenvInt returns nil when the variable is not set.
func GetenvInt(key string) (*int, error) {
	s := GetenvStr(key)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetenvBool returns nil when the variable is not set.
func GetenvBool(key string) (*bool, error) {
	s := GetenvStr(key)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
