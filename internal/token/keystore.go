package token

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/multierr"

	"github.com/restin-ai/authcore/internal/config"
)

// Keystore es el material de claves del proceso. Se construye una sola vez
// al arranque y es inmutable después: las lecturas no requieren lock.
type Keystore struct {
	mode   config.SigningMode
	secret []byte

	activeKID string
	activeKey *rsa.PrivateKey
	public    map[string]*rsa.PublicKey
}

// Load construye el Keystore desde la configuración validada.
// Cualquier defecto es fatal: se acumulan todos antes de reportar, igual
// que la validación de config.
func Load(cfg *config.Config) (*Keystore, error) {
	ks := &Keystore{
		mode:   cfg.JWT.Mode,
		public: map[string]*rsa.PublicKey{},
	}
	if cfg.JWT.SecretKey != "" {
		ks.secret = []byte(cfg.JWT.SecretKey)
	}
	if cfg.JWT.Mode != config.ModeAsymmetric {
		return ks, nil
	}

	var errs error

	pem, err := normalizeKeyMaterial(cfg.JWT.PrivateKey)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("private key: %w", err))
	} else {
		priv, err := jwtv5.ParseRSAPrivateKeyFromPEM(pem)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("private key: not a valid RSA key: %w", err))
		} else {
			ks.activeKID = cfg.JWT.ActiveKID
			ks.activeKey = priv
		}
	}

	pubMap, err := cfg.PublicKeyMap()
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	// Partial loads are not acceptable: every entry parses or startup fails.
	for kid, raw := range pubMap {
		pem, err := normalizeKeyMaterial(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("public key %q: %w", kid, err))
			continue
		}
		pub, err := jwtv5.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("public key %q: not a valid RSA key: %w", kid, err))
			continue
		}
		ks.public[kid] = pub
	}

	if errs != nil {
		return nil, errs
	}
	return ks, nil
}

// normalizeKeyMaterial acepta material de clave en tres formas, en orden:
//  1. PEM inline ("-----BEGIN..."), normalizando secuencias '\n' literales
//     (artefacto común de orquestadores de contenedores).
//  2. Path de archivo ("/..." o "@/...", el prefijo @ se descarta).
//  3. Fallback: PEM inline normalizado.
func normalizeKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key material")
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(unescapeNewlines(s)), nil
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "@") {
		path := strings.TrimPrefix(s, "@")
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read key file %s: %w", path, err)
			}
			return b, nil
		}
	}
	return []byte(unescapeNewlines(s)), nil
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// Mode devuelve el régimen de firma del proceso.
func (k *Keystore) Mode() config.SigningMode { return k.mode }

// Secret devuelve el shared secret, o nil si no hay configurado.
func (k *Keystore) Secret() []byte { return k.secret }

// SigningKey devuelve (kid activo, clave privada activa).
// Falla si el store no se cargó en modo asimétrico.
func (k *Keystore) SigningKey() (string, *rsa.PrivateKey, error) {
	if k.activeKey == nil {
		return "", nil, fmt.Errorf("no active signing key loaded")
	}
	return k.activeKID, k.activeKey, nil
}

// VerificationKey devuelve la pubkey ligada a un kid.
func (k *Keystore) VerificationKey(kid string) (*rsa.PublicKey, bool) {
	pub, ok := k.public[kid]
	return pub, ok
}

// AllPublicKeys devuelve un snapshot del mapa kid -> pubkey.
// Lo consume el endpoint JWKS; solo la mitad pública se exporta.
func (k *Keystore) AllPublicKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(k.public))
	for kid, pub := range k.public {
		out[kid] = pub
	}
	return out
}
