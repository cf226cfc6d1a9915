package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/marcelsud/webhook-capture/endpoint"
)

/* Loader manages endpoint provisioning from a YAML manifest
 * Used to pre-create endpoints for dev and test environments, where stable
 * IDs matter more than minting them through the operator API
 */

// Manifest represents the structure of the provisioning file
type Manifest struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single entry in the YAML file.
// An entry either pins one endpoint to a fixed ID or mints `count` fresh
// ones; it never does both.
type EndpointConfig struct {
	ID    string `yaml:"id"`    // Fixed UUID, stable across environments
	Count int    `yaml:"count"` // Number of random endpoints to mint
}

// Validate checks if the entry is usable
func (c *EndpointConfig) Validate() error {
	if c.ID != "" && c.Count > 0 {
		return fmt.Errorf("entry cannot set both id and count")
	}
	if c.ID != "" {
		if _, err := uuid.Parse(c.ID); err != nil {
			return fmt.Errorf("invalid endpoint id %q: %w", c.ID, err)
		}
	}
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	return nil
}

// Store is the slice of the repository Apply needs.
type Store interface {
	endpoint.Reader
	endpoint.Writer
}

// Loader holds the loaded manifest
type Loader struct {
	entries []EndpointConfig
}

// NewLoader creates a new manifest loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the manifest file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading manifest file: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parsing manifest YAML: %w", err)
	}

	for i, entry := range manifest.Endpoints {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("validating entry %d: %w", i, err)
		}
	}

	l.entries = manifest.Endpoints
	return nil
}

// Entries returns the loaded manifest entries
func (l *Loader) Entries() []EndpointConfig {
	return l.entries
}

/* Apply creates the manifest's endpoints through the repository.
 * Entries with a fixed ID are skipped when the endpoint already exists,
 * so applying the same manifest twice is safe. Returns the endpoints
 * created by this run
 */
func (l *Loader) Apply(ctx context.Context, store Store, baseURL string) ([]endpoint.Endpoint, error) {
	base := strings.TrimRight(baseURL, "/")

	var created []endpoint.Endpoint
	for _, entry := range l.entries {
		ids := make([]string, 0, 1)
		switch {
		case entry.ID != "":
			if _, err := store.Get(ctx, entry.ID); err == nil {
				continue
			} else if !errors.Is(err, endpoint.ErrNotFound) {
				return created, fmt.Errorf("checking endpoint %s: %w", entry.ID, err)
			}
			ids = append(ids, entry.ID)
		default:
			count := entry.Count
			if count == 0 {
				count = 1
			}
			for i := 0; i < count; i++ {
				ids = append(ids, uuid.New().String())
			}
		}

		for _, id := range ids {
			e := endpoint.Endpoint{
				ID:        id,
				URL:       base + "/webhook/" + id,
				CreatedAt: time.Now().UTC(),
			}
			if err := store.Insert(ctx, e); err != nil {
				return created, fmt.Errorf("provisioning endpoint %s: %w", id, err)
			}
			created = append(created, e)
		}
	}

	return created, nil
}
