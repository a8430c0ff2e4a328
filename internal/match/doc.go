// Package match provides title normalization and the similarity ratio
// used to pair watched media with catalog entries.
package match
