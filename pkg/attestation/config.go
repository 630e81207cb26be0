// Copyright 2025 Certen Protocol
//
// HandshakeConfig: static, YAML-loadable configuration for a handshake
// handler. Structured as nested, yaml-tagged settings groups, following the
// configuration idiom used elsewhere in this codebase for deployment-time
// settings (as opposed to the environment-variable style used for runtime
// service wiring).

package attestation

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HandshakeSettings controls the top-level shape of a handshake handler.
type HandshakeSettings struct {
	// Direction selects which side produces evidence and which verifies.
	Direction string `yaml:"direction"`

	// VerifyTimeout bounds how long a single verifier invocation inside
	// PutIncomingMessage is allowed to run before the caller's context
	// should be considered exceeded. The core itself does not enforce
	// this — it is documentation for callers wiring context.WithTimeout.
	VerifyTimeout time.Duration `yaml:"verify_timeout"`

	// AggregatorPolicy selects the ResultsAggregator: "default" or
	// "strict".
	AggregatorPolicy string `yaml:"aggregator_policy"`
}

// VerifierSettings configures one registered verifier by attestation ID.
type VerifierSettings struct {
	ID         string `yaml:"id"`
	Policy     string `yaml:"policy"`      // e.g. "confidential_space", "tdx_pck_chain"
	RootCAPath string `yaml:"root_ca_path"`
}

// HandshakeConfig is the full deployment-time configuration for a handshake
// handler, loaded from YAML.
type HandshakeConfig struct {
	Handshake HandshakeSettings  `yaml:"handshake"`
	Verifiers []VerifierSettings `yaml:"verifiers"`
}

// DefaultConfig returns a HandshakeConfig with conservative defaults: no
// registered verifiers, bidirectional attestation, the default aggregator,
// and a 5-second per-verifier timeout hint.
func DefaultConfig() *HandshakeConfig {
	return &HandshakeConfig{
		Handshake: HandshakeSettings{
			Direction:        Bidirectional.String(),
			VerifyTimeout:    5 * time.Second,
			AggregatorPolicy: "default",
		},
	}
}

// LoadConfig reads and parses a HandshakeConfig from a YAML file, applying
// DefaultConfig's values for any field left zero.
func LoadConfig(path string) (*HandshakeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read handshake config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse handshake config %s: %w", path, err)
	}
	if cfg.Handshake.VerifyTimeout == 0 {
		cfg.Handshake.VerifyTimeout = 5 * time.Second
	}
	if cfg.Handshake.AggregatorPolicy == "" {
		cfg.Handshake.AggregatorPolicy = "default"
	}
	return cfg, nil
}

// Direction parses the configured direction string, defaulting to
// Bidirectional on an unrecognized value.
func (c *HandshakeConfig) Direction() AttestationDirection {
	switch c.Handshake.Direction {
	case SelfUnidirectional.String():
		return SelfUnidirectional
	case PeerUnidirectional.String():
		return PeerUnidirectional
	case Unattested.String():
		return Unattested
	default:
		return Bidirectional
	}
}

// Aggregator returns the ResultsAggregator named by AggregatorPolicy.
func (c *HandshakeConfig) Aggregator() ResultsAggregator {
	if c.Handshake.AggregatorPolicy == "strict" {
		return StrictAggregator{}
	}
	return DefaultAggregator{}
}

// newComponentLogger builds a *log.Logger with the bracketed-prefix
// convention used throughout this codebase. A nil writer falls back to
// io.Discard so a handler never panics on a missing logger.
func newComponentLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		w = io.Discard
	}
	return log.New(w, fmt.Sprintf("[%s] ", prefix), log.LstdFlags)
}
