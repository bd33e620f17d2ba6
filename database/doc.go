// Package database provides connection management, migrations, query hooks,
// metrics, health checks and SQL error classification built on top of Bun.
package database
