package harness

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/framework/helpers"
)

const endpointPathPrefix = "/endpoints/"

// Somewhat arbitrary buffer size for the channel that we use as a queue for
// incoming request information. If the channel is full, the HTTP request
// handler will *not* block; it will just discard the information.
const incomingRequestChannelBufferSize = 10

type callbackEndpointsManager struct {
	endpoints       map[string]*CallbackEndpoint
	lastEndpointID  int
	externalBaseURL string
	loop            *SpinLoop
	logger          framework.Logger
	lock            sync.Mutex
}

// CallbackEndpoint is an HTTP endpoint served under the harness's own
// identity, which the planner service posts asynchronous messages to (plan
// results, costmap queries). Handlers always execute on the harness's spin
// loop.
type CallbackEndpoint struct {
	owner       *callbackEndpointsManager
	id          string
	description string
	basePath    string
	handler     http.Handler
	newReqs     chan IncomingRequestInfo
	logger      framework.Logger
	lock        sync.Mutex
	closing     sync.Once
}

// IncomingRequestInfo contains information about an HTTP request sent by the
// planner service to one of the callback endpoints.
type IncomingRequestInfo struct {
	Headers http.Header
	Method  string
	URL     url.URL
	Body    []byte
}

func newCallbackEndpointsManager(
	externalBaseURL string,
	loop *SpinLoop,
	logger framework.Logger,
) *callbackEndpointsManager {
	return &callbackEndpointsManager{
		endpoints:       make(map[string]*CallbackEndpoint),
		externalBaseURL: externalBaseURL,
		loop:            loop,
		logger:          logger,
	}
}

func (m *callbackEndpointsManager) newCallbackEndpoint(
	handler http.Handler,
	description string,
	logger framework.Logger,
) *CallbackEndpoint {
	if logger == nil {
		logger = m.logger
	}
	e := &CallbackEndpoint{
		owner:       m,
		handler:     handler,
		description: description,
		newReqs:     make(chan IncomingRequestInfo, incomingRequestChannelBufferSize),
		logger:      logger,
	}
	m.lock.Lock()
	m.lastEndpointID++
	e.id = strconv.Itoa(m.lastEndpointID)
	e.basePath = endpointPathPrefix + e.id
	m.endpoints[e.id] = e
	m.lock.Unlock()

	return e
}

func (m *callbackEndpointsManager) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, endpointPathPrefix) {
		m.logger.Printf("Received request for unrecognized URL path %s", r.URL.Path)
		w.WriteHeader(404)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, endpointPathPrefix)
	var endpointID string
	slashPos := strings.Index(path, "/")
	if slashPos >= 0 {
		endpointID = path[0:slashPos]
		path = path[slashPos:]
	} else {
		endpointID = path
		path = "/"
	}

	m.lock.Lock()
	e := m.endpoints[endpointID]
	m.lock.Unlock()
	if e == nil {
		m.logger.Printf("Received request for unrecognized endpoint %s", r.URL.Path)
		w.WriteHeader(404)
		return
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			m.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	transformedReq := r.Clone(r.Context())
	url := *r.URL
	url.Path = path
	transformedReq.URL = &url
	if body != nil {
		transformedReq.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	incoming := IncomingRequestInfo{
		Headers: r.Header,
		Method:  r.Method,
		URL:     url,
		Body:    body,
	}

	e.lock.Lock()
	newReqs := e.newReqs
	e.lock.Unlock()

	if newReqs == nil {
		// the endpoint is already closed
		m.logger.Printf("Received request to already-closed endpoint %s", r.URL)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !helpers.NonBlockingSend(newReqs, incoming) {
		m.logger.Printf("Incoming request channel was full for %s", r.URL)
	}

	// All endpoint traffic is pumped through the spin loop; the handler runs
	// there while this goroutine blocks for the reply.
	err := m.loop.Do(func() {
		e.handler.ServeHTTP(w, transformedReq)
	})
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

// BaseURL returns the externally visible base URL of the endpoint.
func (e *CallbackEndpoint) BaseURL() string {
	return e.owner.externalBaseURL + e.basePath
}

// AwaitRequest waits for an incoming request to the endpoint.
func (e *CallbackEndpoint) AwaitRequest(timeout time.Duration) (IncomingRequestInfo, error) {
	maybeReq := helpers.TryReceive(e.newReqs, timeout)
	if maybeReq.IsDefined() {
		return maybeReq.Value(), nil
	}
	return IncomingRequestInfo{}, fmt.Errorf("timed out waiting for an incoming request to %q (%s)",
		e.description, e.basePath)
}

// RequireRequest waits for an incoming request to the endpoint, and causes
// the test to fail and terminate if it timed out.
func (e *CallbackEndpoint) RequireRequest(t helpers.TestContext, timeout time.Duration) IncomingRequestInfo {
	return helpers.RequireValueWithMessage(t, e.newReqs, timeout, "timed out waiting for request to %q (%s)",
		e.description, e.basePath)
}

// Close unregisters the endpoint. Any subsequent requests to it will receive
// 404 errors.
func (e *CallbackEndpoint) Close() {
	e.closing.Do(func() {
		e.logger.Printf("Closing endpoint %q (%s)", e.description, e.basePath)
		e.owner.lock.Lock()
		delete(e.owner.endpoints, e.id)
		e.owner.lock.Unlock()

		e.lock.Lock()
		close(e.newReqs)
		e.newReqs = nil
		e.lock.Unlock()
	})
}
