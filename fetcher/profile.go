package fetcher

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"
	"time"

	"github.com/fullsailor/pkcs7"
	"github.com/google/uuid"
	"github.com/groob/plist"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pkcs12"

	"github.com/udiddirector/udiddirector/types"
)

// ProfileSigner signs enrollment profiles with a certificate identity.
type ProfileSigner struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
}

// NewProfileSigner loads a signing identity from disk. With an empty
// keyPath the cert path is treated as a PKCS#12 bundle protected by
// password; otherwise certPath and keyPath are read as PEM files.
func NewProfileSigner(certPath, keyPath, password string) (*ProfileSigner, error) {
	var cert *x509.Certificate
	var key crypto.PrivateKey
	var err error

	if keyPath == "" {
		cert, key, err = loadPKCS12Identity(certPath, password)
	} else {
		cert, key, err = loadPEMIdentity(certPath, keyPath, password)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if now.After(cert.NotAfter) {
		return nil, errors.New("Certificate used to sign enrollment profile is expired")
	}
	if now.Before(cert.NotBefore) {
		return nil, errors.New("Certificate used to sign enrollment profile is not yet valid")
	}

	return &ProfileSigner{cert: cert, key: key}, nil
}

func loadPKCS12Identity(p12Path, password string) (*x509.Certificate, crypto.PrivateKey, error) {
	data, err := os.ReadFile(p12Path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to read p12 file")
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to decode p12 file")
	}
	return cert, key, nil
}

func loadPEMIdentity(certPath, keyPath, password string) (*x509.Certificate, crypto.PrivateKey, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to read signing certificate")
	}
	block, _ := pem.Decode(certData)
	if block == nil {
		return nil, nil, errors.New("No PEM data in signing certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to parse signing certificate")
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to read signing key")
	}
	keyBlock, _ := pem.Decode(keyData)
	if keyBlock == nil {
		return nil, nil, errors.New("No PEM data in signing key")
	}

	der := keyBlock.Bytes
	if x509.IsEncryptedPEMBlock(keyBlock) {
		der, err = x509.DecryptPEMBlock(keyBlock, []byte(password))
		if err != nil {
			return nil, nil, errors.Wrap(err, "Failed to decrypt signing key")
		}
	}

	key, err := parsePrivateKey(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("Unsupported private key format")
}

// Sign wraps profile data in a PKCS#7 signature.
func (s *ProfileSigner) Sign(data []byte) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create signed data")
	}
	if err := signedData.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Wrap(err, "Failed to add profile signer")
	}
	signed, err := signedData.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to sign enrollment profile")
	}
	return signed, nil
}

// buildProfile loads the mobileconfig template, points it at the confirm
// endpoint and rewrites the per-request and configured metadata fields.
func (f *Fetcher) buildProfile(confirmURL string) ([]byte, error) {
	data, err := os.ReadFile(f.config.ProfilePath)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read enrollment profile template")
	}

	var profile types.EnrollmentProfile
	if err := plist.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrap(err, "Failed to unmarshal enrollment profile template")
	}

	profile.PayloadContent.URL = confirmURL
	profile.PayloadUUID = strings.ToUpper(uuid.NewString())
	profile.PayloadIdentifier = f.config.PayloadIdentifier
	profile.PayloadDisplayName = f.config.Name
	profile.PayloadOrganization = f.config.Organization
	profile.PayloadDescription = f.config.Description

	out, err := plist.MarshalIndent(&profile, "\t")
	if err != nil {
		return nil, errors.Wrap(err, "Failed to marshal enrollment profile")
	}

	if f.config.Signer != nil {
		return f.config.Signer.Sign(out)
	}
	return out, nil
}
