package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantScope wraps a connection with org context and ensures cleanup.
// The connection has app.current_org_id set for RLS policy evaluation.
type TenantScope struct {
	Conn *pgxpool.Conn
}

// Close resets org context and releases connection to pool.
// This MUST be called to prevent org context from leaking to the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	// Reset the org context before returning connection to pool
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_org_id")
	s.Conn.Release()
}

// WithOrg acquires a connection and sets the org context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithOrg(ctx context.Context, orgID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_org_id', $1, false)", orgID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{Conn: conn}, nil
}

// WithoutOrg acquires a connection without org context.
// Use this for service-role operations that need full access
// (membership lookup, audit writes, embedding repair).
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutOrg(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TenantScope{Conn: conn}, nil
}
