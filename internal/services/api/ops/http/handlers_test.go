package http

import (
	stdctx "context"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	phttp "mailroom/internal/platform/net/http"
	kit "mailroom/internal/platform/testkit"
)

type pinger struct{ err error }

func (p pinger) Ping(stdctx.Context) error { return p.err }

func mount(d Deps) *chi.Mux {
	m := chi.NewRouter()
	Register(phttp.AdaptChi(m), d)
	return m
}

func get(m *chi.Mux, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	return rr
}

func TestPing(t *testing.T) {
	t.Parallel()

	m := mount(Deps{ServiceName: "mailroom-intake", StartedAt: time.Now()})
	rr := get(m, "/ping")
	if rr.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
	kit.MustContain(t, rr.Body.String(), `"ok":true`)
	kit.MustContain(t, rr.Body.String(), "mailroom-intake")
}

func TestReadyChecks(t *testing.T) {
	t.Parallel()

	// healthy pg, no ch configured
	m := mount(Deps{PG: pinger{}, CH: nil})
	body := get(m, "/ready").Body.String()
	kit.MustContain(t, body, `"ok":true`)
	kit.MustContain(t, body, `"status":"skipped"`)

	// failing pg flips the aggregate
	m = mount(Deps{PG: pinger{err: errors.New("down")}})
	body = get(m, "/ready").Body.String()
	kit.MustContain(t, body, `"ok":false`)
	kit.MustContain(t, body, `"status":"fail"`)
}
