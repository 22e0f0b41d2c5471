/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// cloneTLSConfig returns a shallow clone of the exported fields of cfg,
// ignoring the unexported sync.Once which contains a mutex and must not be
// copied. If cfg is nil, a new zero tls.Config is returned.
func cloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{}
	}
	return cfg.Clone()
}

// buildTLSConfig loads b's certificate/key pair and, if RequireCertificate
// is set, requires the client to present one (spec.md section 6).
func buildTLSConfig(b BindingConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(b.Certificate, b.Key)
	if err != nil {
		return nil, err
	}
	cfg := cloneTLSConfig(nil)
	cfg.Certificates = []tls.Certificate{cert}
	if b.RequireCertificate {
		cfg.ClientAuth = tls.RequireAnyClientCert
	}
	return cfg, nil
}

// certIsSelfSigned loads the certificate at path and reports whether its
// issuer and subject are identical, the unsafe-startup heuristic spec.md
// section 6 asks for.
func certIsSelfSigned(path string) (bool, error) {
	cert, err := loadLeafCertificate(path)
	if err != nil {
		return false, err
	}
	return cert.Issuer.String() == cert.Subject.String(), nil
}

func loadLeafCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("ircd: %s contains no PEM certificate block", path)
	}
	return x509.ParseCertificate(block.Bytes)
}
