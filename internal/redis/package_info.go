// Package redis builds the Redis clients that Relay uses: a go-redis UniversalClient for quota
// counting and a redigo connection pool for the project state store. Both are created from the
// same configuration so that they always point at the same server or cluster.
package redis
