package radarr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cleanarr/internal/services"
	"cleanarr/internal/services/radarr"
)

func TestMoviesDecodesCatalog(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]radarr.Movie{
			{ID: 10, Title: "Matrix", Year: 2002, TmdbID: 603},
		})
	}))
	t.Cleanup(server.Close)

	client, err := radarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	movies, err := client.Movies(context.Background())
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Matrix" {
		t.Fatalf("unexpected catalog %+v", movies)
	}
}

func TestDeleteMovieSendsPolicyFlags(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/movie/10" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("deleteFiles") != "true" {
			t.Errorf("expected deleteFiles=true, got %q", q.Get("deleteFiles"))
		}
		if q.Get("addImportExclusion") != "false" {
			t.Errorf("expected addImportExclusion=false, got %q", q.Get("addImportExclusion"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := radarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.DeleteMovie(context.Background(), 10, true, false); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
}

func TestSystemStatusRequiresVersion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	t.Cleanup(server.Close)

	client, err := radarr.New(server.URL, "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.SystemStatus(context.Background()); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestUnauthorizedClassifiesUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := radarr.New(server.URL, "bad-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Movies(context.Background())
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestBasicAuthForwarded(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "proxy" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]radarr.Movie{})
	}))
	t.Cleanup(server.Close)

	client, err := radarr.New(server.URL, "key", radarr.WithBasicAuth("proxy", "secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Movies(context.Background()); err != nil {
		t.Fatalf("Movies with basic auth: %v", err)
	}
}
