// Package redisstore keeps auth session tokens in Redis lists, one list per
// user. Pushes run in a MULTI block so append and trim are atomic.
package redisstore
