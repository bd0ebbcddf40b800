package manifest

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

const signatureType = "jws-detached"

type Signature struct {
	Type          string `json:"type"`
	CertSubject   string `json:"certSubject,omitempty"`
	Issuer        string `json:"issuer,omitempty"`
	SignatureFile string `json:"signatureFile,omitempty"`
}

var allowedAlgs = []jose.SignatureAlgorithm{jose.RS256}

// SignaturePath derives "<manifest>.jws" next to the manifest.
func SignaturePath(manifestPath string) string {
	ext := filepath.Ext(manifestPath)
	return strings.TrimSuffix(manifestPath, ext) + ".jws"
}

// Sign returns a detached compact RS256 JWS over payload.
func Sign(payload, keyPEM []byte) (string, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return "", errors.New("no pem block")
	}
	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse key: %w", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)
	if err != nil {
		return "", err
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return obj.DetachedCompactSerialize()
}

// VerifySignature checks a detached JWS against payload and the signer's
// certificate.
func VerifySignature(payload []byte, jws string, certPEM []byte) error {
	cert, err := parseCert(certPEM)
	if err != nil {
		return err
	}
	obj, err := jose.ParseDetached(strings.TrimSpace(jws), payload, allowedAlgs)
	if err != nil {
		return fmt.Errorf("parse jws: %w", err)
	}
	if err := obj.DetachedVerify(payload, cert.PublicKey); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// SaveSigned records the signer in m, then writes the manifest to out and
// its detached signature to sigOut (SignaturePath(out) when empty).
func SaveSigned(m Manifest, out, sigOut string, keyPEM, certPEM []byte) (string, error) {
	cert, err := parseCert(certPEM)
	if err != nil {
		return "", err
	}
	if sigOut == "" {
		sigOut = SignaturePath(out)
	}
	m.Signature = &Signature{
		Type:          signatureType,
		CertSubject:   cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		SignatureFile: filepath.Base(sigOut),
	}
	payload, err := Marshal(m)
	if err != nil {
		return "", err
	}
	jws, err := Sign(payload, keyPEM)
	if err != nil {
		return "", fmt.Errorf("manifest sign: %w", err)
	}
	if err := os.WriteFile(sigOut, []byte(jws+"\n"), 0o644); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return "", err
	}
	return sigOut, nil
}

func parsePrivateKey(der []byte) (any, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return x509.ParsePKCS8PrivateKey(der)
}

func parseCert(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("parse cert: no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse cert: %w", err)
	}
	return cert, nil
}
