package sonarr_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cleanarr/internal/services/sonarr"
)

func TestEpisodesFiltersBySeries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/episode" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("seriesId") != "7" {
			t.Errorf("expected seriesId=7, got %q", r.URL.Query().Get("seriesId"))
		}
		json.NewEncoder(w).Encode([]sonarr.Episode{
			{ID: 100, SeriesID: 7, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: true},
			{ID: 101, SeriesID: 7, SeasonNumber: 1, EpisodeNumber: 2, Monitored: true, HasFile: false},
		})
	}))
	t.Cleanup(server.Close)

	client, err := sonarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	episodes, err := client.Episodes(context.Background(), 7)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if sonarr.IsFullyDownloaded(episodes) {
		t.Fatal("series with a missing monitored episode must not count as fully downloaded")
	}
}

func TestIsFullyDownloadedIgnoresUnmonitored(t *testing.T) {
	t.Parallel()

	episodes := []sonarr.Episode{
		{ID: 1, Monitored: true, HasFile: true},
		{ID: 2, Monitored: false, HasFile: false},
	}
	if !sonarr.IsFullyDownloaded(episodes) {
		t.Fatal("unmonitored episodes must not block fully downloaded status")
	}
	if !sonarr.IsFullyDownloaded(nil) {
		t.Fatal("empty episode list counts as fully downloaded")
	}
}

func TestSetEpisodeMonitoredBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/episode/monitor" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			EpisodeIDs []int64 `json:"episodeIds"`
			Monitored  bool    `json:"monitored"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(payload.EpisodeIDs) != 1 || payload.EpisodeIDs[0] != 100 {
			t.Errorf("unexpected episode ids %v", payload.EpisodeIDs)
		}
		if payload.Monitored {
			t.Error("expected monitored=false")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	client, err := sonarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.SetEpisodeMonitored(context.Background(), 100, false); err != nil {
		t.Fatalf("SetEpisodeMonitored: %v", err)
	}
}

func TestDeleteSeriesSendsPolicyFlags(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/series/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("deleteFiles") != "false" {
			t.Errorf("expected deleteFiles=false, got %q", q.Get("deleteFiles"))
		}
		if q.Get("addImportListExclusion") != "true" {
			t.Errorf("expected addImportListExclusion=true, got %q", q.Get("addImportListExclusion"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := sonarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.DeleteSeries(context.Background(), 7, false, true); err != nil {
		t.Fatalf("DeleteSeries: %v", err)
	}
}
