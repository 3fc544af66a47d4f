// Package textutil provides text fingerprinting for title comparison.
package textutil
