package core

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/rosterimport/internal/logging"
)

type contextKey string

const (
	ctxKeyTenant    contextKey = "tenant_id"
	ctxKeyIPAddress contextKey = "source_ip"
	ctxKeyUserAgent contextKey = "user_agent"
)

// ContextWithTenant stores the resolved tenant ID.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant, tenantID)
}

// TenantFromContext returns the tenant ID stored by ContextWithTenant.
func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTenant).(string); ok {
		return v
	}
	return ""
}

// ContextWithIPAddress adds the client IP for import run auditing.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the client User-Agent for import run auditing.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// IPAddressFromContext extracts the client IP.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext extracts the client User-Agent.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

func importLogger(ctx context.Context, tenantID string, kind Kind) *slog.Logger {
	return logging.WithFields(ctx, "tenant_id", tenantID, "kind", kind)
}
