package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cloakchain/gateway/foundation/web"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_ShutdownSignal(t *testing.T) {
	t.Log("Given the need to keep handler errors from terminating the service.")
	{
		t.Logf("\tTest 0:\tWhen a handler returns an ordinary error.")
		{
			shutdown := make(chan os.Signal, 1)
			app := web.NewApp(shutdown)

			app.Handle(http.MethodGet, "", "/broken", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errors.New("boom")
			})

			r := httptest.NewRequest(http.MethodGet, "/broken", nil)
			app.ServeHTTP(httptest.NewRecorder(), r)

			select {
			case sig := <-shutdown:
				t.Fatalf("\t%s\tTest 0:\tShould not signal shutdown for a handler error: got %v.", failed, sig)
			default:
			}
			t.Logf("\t%s\tTest 0:\tShould not signal shutdown for a handler error.", success)
		}

		t.Logf("\tTest 1:\tWhen a handler returns a shutdown error.")
		{
			shutdown := make(chan os.Signal, 1)
			app := web.NewApp(shutdown)

			app.Handle(http.MethodGet, "", "/fatal", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.NewShutdownError("integrity issue")
			})

			r := httptest.NewRequest(http.MethodGet, "/fatal", nil)
			app.ServeHTTP(httptest.NewRecorder(), r)

			select {
			case <-shutdown:
			default:
				t.Fatalf("\t%s\tTest 1:\tShould signal shutdown for a shutdown error.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould signal shutdown for a shutdown error.", success)
		}
	}
}
