package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/framework/helpers"
	"github.com/gridnav/planner-test-harness/nav"
)

// TaskStatus is the tri-state outcome of a plan request as seen by the
// client. TaskRunning means a terminal result was never observed within the
// allowed time; the trial runner collapses it to a failure.
type TaskStatus int

const (
	TaskSucceeded TaskStatus = iota + 1
	TaskFailed
	TaskRunning
)

func (s TaskStatus) String() string {
	switch s {
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskRunning:
		return "running"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Time budgets for the three protocol phases. Each is independent; a slow
// acceptance does not shorten the result wait.
const (
	// DefaultServerWaitTimeout bounds WaitForServer in planning scenarios.
	DefaultServerWaitTimeout = 10 * time.Second

	// GoalAcceptTimeout bounds the synchronous accept/reject exchange.
	GoalAcceptTimeout = 5 * time.Second

	// ResultWaitTimeout bounds the wait for the asynchronous terminal result
	// of an accepted goal.
	ResultWaitTimeout = 10 * time.Second
)

// ErrNotImplemented is returned for operations that the protocol advertises
// but that have no working implementation, currently only cancellation of an
// in-flight request.
var ErrNotImplemented = errors.New("operation not implemented")

// PlannerClient issues plan requests to the planner service under test. Each
// request is a two-phase exchange: a bounded synchronous accept/reject, then
// a bounded wait for the asynchronous result, which the planner delivers to a
// per-request callback endpoint. The blocking waits only make progress
// because the harness's spin loop is pumping the callback traffic
// concurrently.
type PlannerClient struct {
	harness    *TestHarness
	costmapURL string
	logger     framework.Logger
	httpClient *http.Client
}

// NewPlannerClient creates a client attached to the harness's planner
// service.
func NewPlannerClient(h *TestHarness, logger framework.Logger) *PlannerClient {
	if logger == nil {
		logger = h.logger
	}
	return &PlannerClient{
		harness:    h,
		logger:     logger,
		httpClient: &http.Client{Timeout: GoalAcceptTimeout},
	}
}

// SetCostmapURL tells the client which costmap service URL to advertise in
// plan requests, so the planner can fetch grid snapshots.
func (c *PlannerClient) SetCostmapURL(url string) {
	c.costmapURL = url
}

// WaitForServer blocks until the planner service answers its status probe, or
// fails after the given timeout. No request is sent when this fails.
func (c *PlannerClient) WaitForServer(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.DefaultClient.Get(c.harness.PlannerBaseURL() + "/status")
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err == nil && resp.StatusCode == 200 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("planner service not running at %s", c.harness.PlannerBaseURL())
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// RequestPlan submits the goal and waits for a terminal result. Every failure
// mode is normalized into the returned TaskStatus: submission timeouts and
// rejections are TaskFailed, a missing terminal result is TaskRunning, and
// only a successful result with a path is TaskSucceeded. On success the
// returned path is the planner's.
func (c *PlannerClient) RequestPlan(goal nav.Goal) (TaskStatus, nav.Path) {
	// The result arrives on a callback endpoint created for this one request,
	// so a late result can never be confused with another trial's.
	resultCh := make(chan nav.PlanResult, 1)
	router := mux.NewRouter()
	router.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		var result nav.PlanResult
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
			c.logger.Printf("Malformed plan result: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		helpers.NonBlockingSend(resultCh, result)
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	endpoint := c.harness.NewCallbackEndpoint(router, "plan result", c.logger)
	defer endpoint.Close()

	request := nav.PlanRequest{
		Goal:        goal,
		CallbackURL: endpoint.BaseURL() + "/result",
		CostmapURL:  c.costmapURL,
	}

	c.logger.Printf("Waiting for goal acceptance")
	acceptance, err := c.submitGoal(request)
	if err != nil {
		c.logger.Printf("Failed to send the goal: %s", err)
		return TaskFailed, nil
	}
	if !acceptance.Accepted {
		c.logger.Printf("Goal rejected: %s", acceptance.Reason)
		return TaskFailed, nil
	}

	c.logger.Printf("Waiting for the server to be done with plan %s", acceptance.PlanID)
	maybeResult := helpers.TryReceive(resultCh, ResultWaitTimeout)
	if !maybeResult.IsDefined() {
		c.logger.Printf("Failed to get a plan within the allowed time")
		return TaskRunning, nil
	}

	result := maybeResult.Value()
	if result.Code != nav.ResultSucceeded {
		c.logger.Printf("Plan %s ended with result code %q", result.PlanID, result.Code)
		return TaskFailed, nil
	}
	return TaskSucceeded, result.Path
}

// submitGoal performs the synchronous accept/reject exchange. The HTTP client
// timeout is the acceptance budget; an elapsed timeout surfaces as a
// transport error here.
func (c *PlannerClient) submitGoal(request nav.PlanRequest) (nav.PlanAcceptance, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nav.PlanAcceptance{}, err
	}
	resp, err := c.httpClient.Post(
		c.harness.PlannerBaseURL()+"/plan", "application/json", bytes.NewReader(data))
	if err != nil {
		return nav.PlanAcceptance{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nav.PlanAcceptance{}, err
	}

	var acceptance nav.PlanAcceptance
	if len(body) > 0 {
		if err := json.Unmarshal(body, &acceptance); err != nil {
			return nav.PlanAcceptance{}, fmt.Errorf("malformed acceptance response: %s", string(body))
		}
	}
	// A non-2xx status is a rejection even if the body says otherwise.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		acceptance.Accepted = false
		if acceptance.Reason == "" {
			acceptance.Reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}
	return acceptance, nil
}

// CancelGoal would cancel an in-flight plan request. The planner protocol
// advertises cancellation but no planner implements it, and neither does this
// client.
func (c *PlannerClient) CancelGoal(planID string) error {
	return ErrNotImplemented
}
