// Package storage persists uploaded audio and the transcriptions produced
// from it. Store has SQLite, PostgreSQL and in-memory implementations; each
// SQL backend creates its schema from an embedded file on open.
package storage
