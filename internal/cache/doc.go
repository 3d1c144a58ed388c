// Fingerprint cache mapping content identifiers to previously computed
// fingerprints, with a TTL set per entry on write.
//
// Includes an interface and implementations using in-process memory, redis
// and the relational database. Entries are derived values: a miss (or a read
// error) means "recompute", never "not similar".
package cache
