// Package audit emite registros de seguridad estructurados.
// Los eventos van al logger con marca audit=true para que el pipeline de
// observabilidad los enrute a un sink aparte.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/restin-ai/authcore/internal/observability/logger"
)

// Security registra un evento de seguridad. Los campos deben nombrar SOLO
// lo que el evento necesita: nada de tokens ni material de claves.
func Security(ctx context.Context, event string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.Bool("audit", true), zap.String("event", event))
	all = append(all, fields...)
	logger.From(ctx).Warn("security audit", all...)
}
