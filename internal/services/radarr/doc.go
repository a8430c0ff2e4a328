// Package radarr implements the Radarr v3 API client used to list and
// delete movies.
package radarr
