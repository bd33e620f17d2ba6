// Package repository provides a generic repository built on Bun for CRUD
// operations, validated offset pagination and connection-scoped work.
package repository
