// Package schema declares the entity types the platform stores and the
// repository configuration each collection runs with.
package schema
