package harness

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
)

const httpListenerTimeout = time.Second * 10

// TestHarness is the main component that manages communication with a
// planner service.
//
// It always communicates with a single planner service, which it verifies is
// alive on startup. It can then create any number of callback endpoints for
// the planner service to interact with (NewCallbackEndpoint), all of which
// are serviced by the harness's single background spin loop.
//
// It contains no validation logic itself, but only provides the messaging
// mechanism that the trial and campaign runners build on.
type TestHarness struct {
	plannerBaseURL string
	plannerInfo    PlannerServiceInfo
	endpoints      *callbackEndpointsManager
	loop           *SpinLoop
	logger         framework.Logger
}

// NewTestHarness creates a TestHarness instance, and verifies that the
// planner service is responding by querying its status resource. It starts
// the background spin loop and an HTTP listener on the specified port to
// receive callback requests. Close must be called at teardown to stop the
// loop.
func NewTestHarness(
	plannerServiceBaseURL string,
	testHarnessExternalHostname string,
	testHarnessPort int,
	statusQueryTimeout time.Duration,
	debugLogger framework.Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}

	externalBaseURL := fmt.Sprintf("http://%s:%d", testHarnessExternalHostname, testHarnessPort)

	loop := NewSpinLoop(debugLogger)
	loop.Start()

	h := &TestHarness{
		plannerBaseURL: plannerServiceBaseURL,
		endpoints:      newCallbackEndpointsManager(externalBaseURL, loop, debugLogger),
		loop:           loop,
		logger:         debugLogger,
	}

	plannerInfo, err := queryPlannerServiceInfo(plannerServiceBaseURL, statusQueryTimeout, startupOutput)
	if err != nil {
		loop.Stop()
		return nil, err
	}
	h.plannerInfo = plannerInfo

	if err := startServer(testHarnessPort, http.HandlerFunc(h.serveHTTP)); err != nil {
		loop.Stop()
		return nil, err
	}

	return h, nil
}

// PlannerServiceInfo returns the initial status information received from the
// planner service.
func (h *TestHarness) PlannerServiceInfo() PlannerServiceInfo {
	return h.plannerInfo
}

// PlannerBaseURL returns the base URL of the planner service under test.
func (h *TestHarness) PlannerBaseURL() string {
	return h.plannerBaseURL
}

// Loop returns the harness's background spin loop.
func (h *TestHarness) Loop() *SpinLoop {
	return h.loop
}

// NewCallbackEndpoint adds a new endpoint that can receive requests from the
// planner service.
//
// The specified handler will be called for all incoming requests to the
// endpoint's base URL or any subpath of it; the harness rewrites the request
// URL first so that the handler sees only the subpath. Handlers execute on
// the spin loop.
func (h *TestHarness) NewCallbackEndpoint(
	handler http.Handler,
	description string,
	logger framework.Logger,
) *CallbackEndpoint {
	if logger == nil {
		logger = h.logger
	}
	return h.endpoints.newCallbackEndpoint(handler, description, logger)
}

// Close stops the spin loop and joins it. The harness must not be used after
// Close returns.
func (h *TestHarness) Close() {
	h.loop.Stop()
}

func (h *TestHarness) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "HEAD" {
		w.WriteHeader(200) // we use this to test whether our own listener is active yet
		return
	}
	h.endpoints.serveHTTP(w, r)
}

func startServer(port int, handler http.Handler) error {
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "HEAD" {
				w.WriteHeader(200)
				return
			}
			handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second, // arbitrary but non-infinite timeout to avoid Slowloris Attack
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			panic(err)
		}
	}()

	// Wait till the server is definitely listening for requests before we run any tests
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect own listener at %s", server.Addr)
		case <-ticker.C:
			req, _ := http.NewRequest("HEAD", fmt.Sprintf("http://localhost:%d", port), nil)
			resp, err := http.DefaultClient.Do(req)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				return nil
			}
		}
	}
}
