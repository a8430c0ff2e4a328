// Package jellyfin implements the Jellyfin API client used to enumerate
// viewers, watched media, and favorites, and to delete items.
package jellyfin
