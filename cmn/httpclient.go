package cmn

import (
	"crypto/tls"
	"crypto/x509"
	"os"
)

// TLSConfig builds a *tls.Config trusting only caCertPath's PEM bundle when
// caCertPath is non-empty; an empty path yields nil, meaning "use the
// system default trust store" (§4.3).
func TLSConfig(caCertPath string) (*tls.Config, error) {
	if caCertPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, Wrapf(err, "read CA bundle %s", caCertPath)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, Wrapf(ErrPersistence, "CA bundle %s contains no usable certificates", caCertPath)
	}
	return &tls.Config{RootCAs: pool}, nil
}
