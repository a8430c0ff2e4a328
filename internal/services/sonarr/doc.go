// Package sonarr implements the Sonarr v3 API client used to list
// series and episodes, unmonitor episodes, and delete series.
package sonarr
