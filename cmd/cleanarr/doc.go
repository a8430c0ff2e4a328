// Command cleanarr reconciles watched Jellyfin media against Radarr and
// Sonarr and deletes what nobody wants to keep.
package main
