package commands

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/cvc"
)

// Config is the yaml configuration of the CLI. File paths are resolved
// relative to the config file's directory.
type Config struct {
	ReaderIndex int            `yaml:"reader_index"`
	Identity    IdentityConfig `yaml:"identity"`
	Trust       TrustConfig    `yaml:"trust"`
	Card        CardConfig     `yaml:"card"`
}

// IdentityConfig locates the host's static key and certificates.
type IdentityConfig struct {
	// Curve names the domain parameters of the private key, for example
	// brainpoolP256r1.
	Curve string `yaml:"curve"`
	// PrivateKeyHexFile holds the private scalar as hex text.
	PrivateKeyHexFile string `yaml:"private_key_hex_file"`
	// CertificateFile holds the encoded end-entity certificate.
	CertificateFile string `yaml:"certificate_file"`
	// SubCACertificateFile holds the encoded issuing sub-CA certificate.
	SubCACertificateFile string `yaml:"sub_ca_certificate_file"`
}

// TrustConfig locates the trust anchors.
type TrustConfig struct {
	RootCertificateFiles []string `yaml:"root_certificate_files"`
}

// CardConfig locates the card's certificate material.
type CardConfig struct {
	CertificateFile              string   `yaml:"certificate_file"`
	IntermediateCertificateFiles []string `yaml:"intermediate_certificate_files"`
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	c.Identity.PrivateKeyHexFile = resolve(c.Identity.PrivateKeyHexFile)
	c.Identity.CertificateFile = resolve(c.Identity.CertificateFile)
	c.Identity.SubCACertificateFile = resolve(c.Identity.SubCACertificateFile)
	for i, p := range c.Trust.RootCertificateFiles {
		c.Trust.RootCertificateFiles[i] = resolve(p)
	}
	c.Card.CertificateFile = resolve(c.Card.CertificateFile)
	for i, p := range c.Card.IntermediateCertificateFiles {
		c.Card.IntermediateCertificateFiles[i] = resolve(p)
	}
}

func (c *Config) validate() error {
	if c.ReaderIndex < 0 {
		return fmt.Errorf("config: reader_index must not be negative")
	}
	if c.Identity.PrivateKeyHexFile == "" {
		return fmt.Errorf("config: identity.private_key_hex_file is required")
	}
	if c.Identity.CertificateFile == "" || c.Identity.SubCACertificateFile == "" {
		return fmt.Errorf("config: identity certificate files are required")
	}
	if len(c.Trust.RootCertificateFiles) == 0 {
		return fmt.Errorf("config: trust.root_certificate_files must name at least one anchor")
	}
	if c.Card.CertificateFile == "" {
		return fmt.Errorf("config: card.certificate_file is required")
	}
	if _, err := c.curveID(); err != nil {
		return err
	}
	return nil
}

func (c *Config) curveID() (crypto.CurveID, error) {
	switch strings.ToLower(c.Identity.Curve) {
	case "", "brainpoolp256r1":
		return crypto.BrainpoolP256r1, nil
	case "brainpoolp384r1":
		return crypto.BrainpoolP384r1, nil
	case "brainpoolp512r1":
		return crypto.BrainpoolP512r1, nil
	default:
		return 0, fmt.Errorf("config: unknown curve %q", c.Identity.Curve)
	}
}

// loadPrivateKey reads the hex-encoded private scalar.
func (c *Config) loadPrivateKey() (*crypto.KeyPair, error) {
	curve, err := c.curveID()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(c.Identity.PrivateKeyHexFile)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	scalar, err := hex.DecodeString(strings.TrimSpace(string(content)))
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}

	return crypto.KeyPairFromScalar(curve, scalar)
}

// loadCertificate reads and decodes one certificate file.
func loadCertificate(path string) (*cvc.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate %s: %w", path, err)
	}
	cert, err := cvc.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode certificate %s: %w", path, err)
	}
	return cert, nil
}

// loadCertificates reads a list of certificate files.
func loadCertificates(paths []string) ([]*cvc.Certificate, error) {
	certs := make([]*cvc.Certificate, 0, len(paths))
	for _, p := range paths {
		cert, err := loadCertificate(p)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
