// Package kg talks to a Wikibase knowledge graph through its Action API.
// Reads (identifier and label searches, claim inspection) are anonymous;
// writes log in with a bot account and attach a provenance reference to every
// repository statement they create.
package kg
