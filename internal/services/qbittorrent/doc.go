// Package qbittorrent implements the qBittorrent Web API client used to
// check whether media is still present as an active or completed torrent.
package qbittorrent
