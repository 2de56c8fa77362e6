// Package keygen generates SSH key pairs for declared key resources. Private
// keys are rendered as PKCS#8 PEM, public keys in authorized_keys form.
package keygen

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

const (
	defaultRSABits = 4096
	minRSABits     = 2048
)

// Options selects the key algorithm and its parameters.
type Options struct {
	Type  string // rsa, ec, ed25519
	Bits  int    // rsa only, default 4096
	Curve string // ec only: p256 (default), p384, p521
}

// Pair is a generated key pair ready for storage.
type Pair struct {
	PublicKey  string // authorized_keys line
	PrivateKey string // PKCS#8 PEM
}

// Generate produces a fresh key pair for the given options.
func Generate(opts Options) (Pair, error) {
	signer, err := newKey(opts)
	if err != nil {
		return Pair{}, err
	}
	return encode(signer)
}

func newKey(opts Options) (crypto.Signer, error) {
	switch opts.Type {
	case "rsa":
		bits := opts.Bits
		if bits == 0 {
			bits = defaultRSABits
		}
		if bits < minRSABits {
			return nil, fmt.Errorf("rsa key size %d is below the %d-bit minimum", bits, minRSABits)
		}
		return rsa.GenerateKey(rand.Reader, bits)
	case "ec":
		curve, err := namedCurve(opts.Curve)
		if err != nil {
			return nil, err
		}
		return ecdsa.GenerateKey(curve, rand.Reader)
	case "ed25519":
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	}
	return nil, fmt.Errorf("unsupported key type %q (want rsa, ec, or ed25519)", opts.Type)
}

func namedCurve(name string) (elliptic.Curve, error) {
	switch strings.ToLower(name) {
	case "", "p256", "p-256":
		return elliptic.P256(), nil
	case "p384", "p-384":
		return elliptic.P384(), nil
	case "p521", "p-521":
		return elliptic.P521(), nil
	}
	return nil, fmt.Errorf("unsupported curve %q (want p256, p384, or p521)", name)
}

func encode(signer crypto.Signer) (Pair, error) {
	der, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to encode private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	sshPub, err := ssh.NewPublicKey(signer.Public())
	if err != nil {
		return Pair{}, fmt.Errorf("failed to encode public key: %w", err)
	}

	return Pair{
		PublicKey:  strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))),
		PrivateKey: string(privPEM),
	}, nil
}
