package securechannel

import (
	"errors"
	"testing"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/cvc"
)

// identityFixture holds certificate material for identity construction tests.
type identityFixture struct {
	validator *cvc.ChainValidator
	rootKey   *crypto.KeyPair
	subKey    *crypto.KeyPair
	hostKey   *crypto.KeyPair
	root      *cvc.Certificate
	subCA     *cvc.Certificate
	hostCert  *cvc.Certificate
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()

	f := &identityFixture{
		rootKey: testScalar(t, 0x81),
		subKey:  testScalar(t, 0x91),
		hostKey: testScalar(t, 0x01),
	}

	f.root = issue(t, &cvc.Template{
		CAR:       ref(t, "DETESTCA"),
		CHR:       ref(t, "DETESTCA"),
		PublicKey: f.rootKey.PublicKey(),
		Role:      cvc.RoleRoot,
	}, f.rootKey)

	f.subCA = issue(t, &cvc.Template{
		CAR:       ref(t, "DETESTCA"),
		CHR:       ref(t, "DESUBCA1"),
		PublicKey: f.subKey.PublicKey(),
		Role:      cvc.RoleSubCA,
	}, f.rootKey)

	f.hostCert = issue(t, &cvc.Template{
		CAR:       ref(t, "DESUBCA1"),
		CHR:       ref(t, "DEHOST01"),
		PublicKey: f.hostKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, f.subKey)

	v, err := cvc.NewChainValidator(f.root)
	if err != nil {
		t.Fatalf("NewChainValidator: %v", err)
	}
	f.validator = v
	return f
}

func TestNewIdentity(t *testing.T) {
	f := newIdentityFixture(t)

	id, err := NewIdentity(f.hostKey, f.hostCert, f.subCA, f.validator)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if id.HolderReference() != ref(t, "DEHOST01") {
		t.Errorf("holder reference = %s", id.HolderReference())
	}
	if id.CurveID() != crypto.BrainpoolP256r1 {
		t.Errorf("curve = %s", id.CurveID())
	}
}

func TestNewIdentityFailures(t *testing.T) {
	f := newIdentityFixture(t)

	// CHR/CAR linkage broken: host certificate issued by a different
	// authority reference.
	unlinkedCert := issue(t, &cvc.Template{
		CAR:       ref(t, "DEOTHER1"),
		CHR:       ref(t, "DEHOST01"),
		PublicKey: f.hostKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, f.subKey)

	// Key mismatch: certificate carries an unrelated public key.
	otherKey := testScalar(t, 0x51)
	mismatchCert := issue(t, &cvc.Template{
		CAR:       ref(t, "DESUBCA1"),
		CHR:       ref(t, "DEHOST01"),
		PublicKey: otherKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, f.subKey)

	// Forged: correct references and key but not signed by the sub-CA.
	forgedCert := issue(t, &cvc.Template{
		CAR:       ref(t, "DESUBCA1"),
		CHR:       ref(t, "DEHOST01"),
		PublicKey: f.hostKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, otherKey)

	// Sub-CA that no trust anchor covers.
	strayKey := testScalar(t, 0x61)
	straySubCA := issue(t, &cvc.Template{
		CAR:       ref(t, "DESTRAY1"),
		CHR:       ref(t, "DESUBCA1"),
		PublicKey: strayKey.PublicKey(),
		Role:      cvc.RoleSubCA,
	}, strayKey)

	tests := []struct {
		name  string
		key   *crypto.KeyPair
		ee    *cvc.Certificate
		subCA *cvc.Certificate
	}{
		{"nil key", nil, f.hostCert, f.subCA},
		{"nil certificate", f.hostKey, nil, f.subCA},
		{"swapped roles", f.hostKey, f.subCA, f.hostCert},
		{"broken linkage", f.hostKey, unlinkedCert, f.subCA},
		{"key mismatch", f.hostKey, mismatchCert, f.subCA},
		{"forged end-entity", f.hostKey, forgedCert, f.subCA},
		{"untrusted sub-CA", f.hostKey, f.hostCert, straySubCA},
		{"root as issuer", f.hostKey, f.hostCert, f.root},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIdentity(tt.key, tt.ee, tt.subCA, f.validator)
			var confErr ConfigurationError
			if !errors.As(err, &confErr) {
				t.Errorf("NewIdentity: %v, want ConfigurationError", err)
			}
		})
	}
}

func TestImportPeerCertificate(t *testing.T) {
	f := newIdentityFixture(t)

	cardKey := testScalar(t, 0x21)
	cardCert := issue(t, &cvc.Template{
		CAR:       ref(t, "DESUBCA1"),
		CHR:       ref(t, "DECARD01"),
		PublicKey: cardKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, f.subKey)

	peer, chain, err := ImportPeerCertificate(cardCert.Raw(), []*cvc.Certificate{f.subCA}, f.validator)
	if err != nil {
		t.Fatalf("ImportPeerCertificate: %v", err)
	}
	if peer.Certificate().CHR != ref(t, "DECARD01") {
		t.Errorf("peer CHR = %s", peer.Certificate().CHR)
	}
	if len(chain) != 3 || chain[2].CHR != ref(t, "DETESTCA") {
		t.Errorf("chain does not run leaf to root: %v", chain)
	}
}

func TestImportPeerCertificateFailures(t *testing.T) {
	f := newIdentityFixture(t)

	var confErr ConfigurationError

	// Undecodable bytes.
	if _, _, err := ImportPeerCertificate([]byte{0x7F, 0x21, 0x01, 0x00}, nil, f.validator); !errors.As(err, &confErr) {
		t.Errorf("garbage certificate: %v", err)
	}

	// Wrong role: a sub-CA certificate is not a valid peer.
	if _, _, err := ImportPeerCertificate(f.subCA.Raw(), nil, f.validator); !errors.As(err, &confErr) {
		t.Errorf("sub-CA as peer: %v", err)
	}

	// Valid shape, but no chain to a trust anchor.
	cardKey := testScalar(t, 0x21)
	cardCert := issue(t, &cvc.Template{
		CAR:       ref(t, "DESUBCA1"),
		CHR:       ref(t, "DECARD01"),
		PublicKey: cardKey.PublicKey(),
		Role:      cvc.RoleEndEntity,
	}, f.subKey)
	if _, _, err := ImportPeerCertificate(cardCert.Raw(), nil, f.validator); !errors.As(err, &confErr) {
		t.Errorf("missing intermediates: %v", err)
	}
}
