package token

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"sort"
)

// JWK es una clave pública RSA en formato JSON Web Key.
type JWK struct {
	Kty string `json:"kty"` // "RSA"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "RS256"
	Use string `json:"use"` // "sig"
	N   string `json:"n"`   // base64url(modulus)
	E   string `json:"e"`   // base64url(exponent)
}

// JWKS es el key set publicable.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKSJSON serializa todas las públicas del keystore en JWKS.
// Orden estable por kid para que el endpoint sea determinista.
func (k *Keystore) JWKSJSON() []byte {
	pubs := k.AllPublicKeys()
	kids := make([]string, 0, len(pubs))
	for kid := range pubs {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	out := JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		pub := pubs[kid]
		out.Keys = append(out.Keys, JWK{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	b, _ := json.Marshal(out)
	return b
}
