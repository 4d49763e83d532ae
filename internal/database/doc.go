// Package database provides connection pool management for the PostgreSQL
// message store. The chat relay itself runs without it; persistence is
// optional and best-effort.
package database
