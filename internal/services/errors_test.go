package services_test

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"cleanarr/internal/services"
)

func TestStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   services.Kind
	}{
		{401, services.KindUnavailable},
		{403, services.KindUnavailable},
		{408, services.KindTransient},
		{429, services.KindTransient},
		{500, services.KindTransient},
		{503, services.KindTransient},
		{400, services.KindFatal},
		{404, services.KindFatal},
	}

	for _, tc := range cases {
		err := services.StatusError("radarr", "list movies", tc.status)
		if got := services.KindOf(err); got != tc.want {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, got)
		}
	}
}

func TestTransportErrorsAreUnavailable(t *testing.T) {
	t.Parallel()

	cause := &url.Error{Op: "Get", URL: "http://localhost:7878", Err: errors.New("connection refused")}
	err := services.WrapTransport("radarr", "list movies", cause)
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", services.KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
}

func TestWrappedServiceErrorSurvivesFmtErrorf(t *testing.T) {
	t.Parallel()

	inner := services.StatusError("sonarr", "list series", 401)
	outer := fmt.Errorf("fetch catalog: %w", inner)
	if !services.IsUnavailable(outer) {
		t.Fatal("expected classification through wrapping")
	}
}

func TestPlainErrorIsFatal(t *testing.T) {
	t.Parallel()

	if services.KindOf(errors.New("boom")) != services.KindFatal {
		t.Fatal("expected plain errors to classify as fatal")
	}
}
