package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/service"
)

func TestRouter(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.CreateJob(context.Background(), schemas.NewInviteJob("job-9", "acct-1", []string{"a@acme.test"}, schemas.RoleMember, time.Now())))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "seatctl_pool_leases 0\n")
	})

	tests := []struct {
		name     string
		health   func(context.Context) error
		path     string
		wantCode int
		wantBody string
	}{
		{name: "healthy", path: "/healthz", wantCode: http.StatusOK, wantBody: "ok"},
		{name: "database down", health: func(context.Context) error { return errors.New("refused") }, path: "/healthz", wantCode: http.StatusServiceUnavailable, wantBody: "database unavailable"},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK, wantBody: "seatctl_pool_leases"},
		{name: "job", path: "/api/jobs/job-9", wantCode: http.StatusOK, wantBody: `"status":"pending"`},
		{name: "missing job", path: "/api/jobs/nope", wantCode: http.StatusNotFound, wantBody: "job not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(newRouter(tt.health, metrics, st))
			defer srv.Close()

			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

type failingJobs struct{}

func (failingJobs) GetJob(context.Context, string) (*schemas.InviteJob, error) {
	return nil, errors.New("connection reset")
}

func TestRouter_JobLookupFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil, nil, failingJobs{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no metrics route without a handler")
}

func TestServe_StopsCleanlyOnCancel(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.ServiceCfg.CheckInterval = time.Hour

	acct := testAccount()
	acct.Cookies = nil
	st := newMemStore(acct)
	svc, err := service.New(cfg, service.Dependencies{
		Store:    st,
		Opener:   &stubOpener{err: errors.New("must not open")},
		Profiles: noProfiles{},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, svc, "127.0.0.1:0", newRouter(nil, nil, st), zaptest.NewLogger(t))
	}()

	// The first sweep probes the only account.
	require.Eventually(t, func() bool { return st.probeCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_ListenFailureIsReported(t *testing.T) {
	cfg := config.NewDefaultConfig()
	svc, err := service.New(cfg, service.Dependencies{
		Store:    newMemStore(),
		Opener:   &stubOpener{},
		Profiles: noProfiles{},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = serve(context.Background(), svc, "256.0.0.1:bad", newRouter(nil, nil, nil), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}
