// Package persistence mirrors the link-state database to durable storage so
// state survives the machine a run happens to execute on. Backends pull the
// latest snapshot before the store opens and push it back after a clean close.
package persistence
