// Package cleanup implements the reconciliation engine: it pairs media
// watched in Jellyfin with Radarr and Sonarr catalog entries, filters
// out favorites and recent watches, cross-checks the download client,
// and builds and executes a deletion plan.
package cleanup
