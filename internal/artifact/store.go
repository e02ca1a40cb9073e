// Package artifact persists and restores trained scoring bundles.
// The binary bundle travels as msgpack; a JSON schema sidecar keeps
// the bundle inspectable without decoding it.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/internal/modules/model"
)

const (
	bundleFile = "bundle.msgpack"
	schemaFile = "schema.json"
)

// Bundle is everything inference needs, trained as one unit
type Bundle struct {
	RunID       string             `msgpack:"run_id" json:"run_id"`
	CreatedAt   time.Time          `msgpack:"created_at" json:"created_at"`
	Country     *model.Package     `msgpack:"country" json:"country"`
	Sector      *model.Package     `msgpack:"sector,omitempty" json:"sector,omitempty"`
	Multipliers map[string]float64 `msgpack:"multipliers" json:"multipliers"`
}

// Validate checks the bundle is usable for inference
func (b *Bundle) Validate() error {
	if b.Country == nil {
		return fmt.Errorf("bundle has no country model")
	}
	if b.Country.Mode != domain.ModeProbability && b.Country.Mode != domain.ModeRiskScore {
		return fmt.Errorf("bundle country model has unknown mode %q", b.Country.Mode)
	}
	return nil
}

// Store reads and writes bundles under a single directory. Writes go
// through a scratch directory and rename into place, so a crashed
// save never leaves a half-written bundle behind.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "artifact-store").Logger(),
	}
}

// Save writes the bundle plus its JSON schema sidecar
func (s *Store) Save(b *Bundle) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}
	if b.RunID == "" {
		b.RunID = uuid.New().String()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	scratch := filepath.Join(s.dir, "tmp-"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	blob, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, bundleFile), blob, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	// schema sidecar: same struct, minus the heavy fields via JSON tags
	schema, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, schemaFile), schema, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	// the sidecar lands first; the bundle rename is the commit point.
	// Load never reads the sidecar, so a crash between the two renames
	// leaves the previous bundle fully intact and served.
	for _, name := range []string{schemaFile, bundleFile} {
		if err := os.Rename(filepath.Join(scratch, name), filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	s.log.Info().
		Str("dir", s.dir).
		Str("run_id", b.RunID).
		Int("bundle_bytes", len(blob)).
		Msg("Saved artifact bundle")
	return nil
}

// Load reads and validates the current bundle
func (s *Store) Load() (*Bundle, error) {
	blob, err := os.ReadFile(filepath.Join(s.dir, bundleFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var b Bundle
	if err := msgpack.Unmarshal(blob, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load bundle: %w", err)
	}
	s.log.Debug().Time("created_at", b.CreatedAt).Msg("Loaded artifact bundle")
	return &b, nil
}

// BundlePath returns the path of the current bundle file
func (s *Store) BundlePath() string {
	return filepath.Join(s.dir, bundleFile)
}
