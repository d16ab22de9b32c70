// Package repositories provides data access for catalog-engine.
// Repositories are stateless; org-scoped ones read the tenant-scoped
// connection from the request context (database.GetTenantScope).
package repositories

import (
	"strconv"
	"strings"
)

// jsonbValueMap converts a map to JSONB format for database insertion.
func jsonbValueMap(v map[string]any) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

// vectorLiteral renders an embedding in pgvector's text format ("[1,2,3]")
// so it can be bound as a parameter and cast with ::vector.
func vectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
