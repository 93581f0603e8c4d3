package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del core de auth. Van en un paquete propio para evitar ciclos
// de import entre token/auth y el paquete HTTP.

var (
	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens de acceso emitidos por algoritmo",
	}, []string{"alg"})

	VerifyFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_verify_failures_total",
		Help: "Fallos de verificación de token por categoría y algoritmo",
	}, []string{"category", "alg"})

	FederatedLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_federated_logins_total",
		Help: "Logins federados por resultado",
	}, []string{"outcome"}) // outcome: ok|user_not_found|rejected

	JWKSRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_upstream_jwks_refresh_total",
		Help: "Refrescos del JWKS del issuer federado por resultado",
	}, []string{"result"}) // result: ok|not_modified|error
)

// RegisterAuth registra las métricas del core en el registry dado
// (o el default si es nil). Duplicados se ignoran.
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokensIssuedTotal,
		VerifyFailuresTotal,
		FederatedLoginsTotal,
		JWKSRefreshTotal,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// RecordTokenIssued registra la emisión de un token.
func RecordTokenIssued(alg string) {
	TokensIssuedTotal.WithLabelValues(alg).Inc()
}

// RecordVerifyFailure registra un fallo de verificación.
func RecordVerifyFailure(category, alg string) {
	VerifyFailuresTotal.WithLabelValues(category, alg).Inc()
}

// RecordFederatedLogin registra el resultado de un login federado.
func RecordFederatedLogin(outcome string) {
	FederatedLoginsTotal.WithLabelValues(outcome).Inc()
}
