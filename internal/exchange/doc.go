// Package exchange holds the currency exchange domain: the entity, its SQL
// repository with optimistic locking, and the Service that keeps the
// "exchangeValue" cache in step with the database.
//
// Cache entries are keyed "{from}_{to}". Reads go through the cache, writes
// put the stored row into it and deletes evict it.
package exchange
