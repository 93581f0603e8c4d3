package token

import "errors"

// Category clasifica un fallo de verificación. Es la taxonomía completa que
// ve el caller: el detalle interno se loguea, nunca se propaga.
type Category int

const (
	// CategoryMissing: no token supplied.
	CategoryMissing Category = iota
	// CategoryMalformed: not parseable, unsupported algorithm, or a
	// required header field is absent.
	CategoryMalformed
	// CategoryExpired: structurally and cryptographically valid but past exp.
	CategoryExpired
	// CategoryInvalidSignature: signature failure, unknown kid, or
	// issuer/audience mismatch under RS256.
	CategoryInvalidSignature
)

func (c Category) String() string {
	switch c {
	case CategoryMissing:
		return "missing"
	case CategoryMalformed:
		return "malformed"
	case CategoryExpired:
		return "expired"
	default:
		return "invalid_signature"
	}
}

// Code devuelve el código de una línea visible para el usuario.
func (c Category) Code() string {
	switch c {
	case CategoryMissing:
		return "TOKEN_MISSING"
	case CategoryMalformed:
		return "TOKEN_MALFORMED"
	case CategoryExpired:
		return "TOKEN_EXPIRED"
	default:
		return "TOKEN_INVALID_SIGNATURE"
	}
}

// message es el texto seguro por categoría. Nunca material criptográfico.
func (c Category) message() string {
	switch c {
	case CategoryMissing:
		return "no bearer token supplied"
	case CategoryMalformed:
		return "token is malformed"
	case CategoryExpired:
		return "token has expired"
	default:
		return "token signature could not be verified"
	}
}

// VerifyError es el fallo que ve el caller: categoría + mensaje corto.
type VerifyError struct {
	Category Category
	Message  string
}

func (e *VerifyError) Error() string {
	return e.Category.Code() + ": " + e.Message
}

// Categorize extrae la categoría de un error del verifier.
// Errores ajenos al verifier mapean a invalid_signature ("could not
// authenticate") para no filtrar detalle.
func Categorize(err error) Category {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return CategoryInvalidSignature
}
