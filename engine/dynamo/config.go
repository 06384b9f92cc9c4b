package dynamo

import "strings"

// Config holds configuration for the DynamoDB Engine.
type Config struct {
	// TablePrefix is prepended to the lower-cased resource name to form the
	// table name when Tables has no entry for it.
	// Default: "resourceful_"
	TablePrefix string

	// Tables maps resource names to explicit table names.
	Tables map[string]string

	// Indexes maps attribute names to global secondary indexes whose hash key
	// is that attribute. Find queries the index instead of scanning the table.
	// Example: {"user_id": "user_id-index"}
	Indexes map[string]string

	// Region, Profile and Endpoint are used by Open to build the client.
	// Endpoint points the client at DynamoDB Local or another compatible service.
	Region   string
	Profile  string
	Endpoint string

	// ScanPageSize is the Limit sent with each Scan/Query page.
	// Default: 100, Max: 1000
	ScanPageSize int32
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TablePrefix:  "resourceful_",
		ScanPageSize: 100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "resourceful_"
	}
	if c.ScanPageSize < 1 {
		c.ScanPageSize = 100
	}
	if c.ScanPageSize > 1000 {
		c.ScanPageSize = 1000
	}
}

// TableName returns the table a resource is stored in.
func (c Config) TableName(resource string) string {
	if name, ok := c.Tables[resource]; ok && name != "" {
		return name
	}
	return c.TablePrefix + strings.ToLower(resource)
}
