// Package dump pulls upstream dump files to local disk. Downloads land in a
// temp file and replace the previous dump atomically, so a failed transfer
// leaves the last good dump in place.
package dump
