package bolt

import (
	"os"
	"time"
)

// Config holds configuration for the bolt Engine.
type Config struct {
	// Path is the database file.
	// Default: "resourceful.db"
	Path string

	// FileMode is used when the database file is created.
	// Default: 0600
	FileMode os.FileMode

	// Timeout bounds how long Open waits for the file lock.
	// Default: 1s, Max: 1m
	Timeout time.Duration

	// BucketPrefix is prepended to every resource bucket name.
	BucketPrefix string
}

// DefaultConfig returns the configuration for a database in the working directory.
func DefaultConfig() Config {
	return Config{
		Path:     "resourceful.db",
		FileMode: 0o600,
		Timeout:  time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Path == "" {
		c.Path = "resourceful.db"
	}
	if c.FileMode == 0 {
		c.FileMode = 0o600
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.Timeout > time.Minute {
		c.Timeout = time.Minute
	}
}
