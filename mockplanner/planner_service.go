// Package mockplanner is a controllable in-process implementation of the
// planner service protocol. The suite's own tests run the harness against it
// to exercise every protocol phase: acceptance delays, rejections, missing
// results, and real planning over a grid.
package mockplanner

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/nav"
)

// Config sets the mock planner's behavior for a test.
type Config struct {
	// Name and Capabilities populate the status document.
	Name         string
	Capabilities framework.Capabilities

	// Grid is the occupancy grid the mock plans over. Required unless
	// ForcePath is set.
	Grid *grid.Costmap

	// AcceptDelay delays the synchronous accept/reject response, e.g. beyond
	// the client's acceptance budget.
	AcceptDelay time.Duration

	// RejectGoals makes every submission be rejected with RejectReason.
	RejectGoals  bool
	RejectReason string

	// ResultDelay delays the asynchronous result callback.
	ResultDelay time.Duration

	// NeverSendResult accepts goals but never delivers a result.
	NeverSendResult bool

	// ForceResultCode, when non-empty, overrides the result code.
	ForceResultCode nav.ResultCode

	// ForcePath, when non-nil, is returned instead of a computed path.
	ForcePath nav.Path
}

// Service implements the planner service protocol over HTTP.
type Service struct {
	config      Config
	handler     http.Handler
	robotPose   nav.Position
	debugLogger framework.Logger
	httpClient  *http.Client
	lock        sync.Mutex
}

// NewService creates a mock planner with the given behavior.
func NewService(config Config, debugLogger framework.Logger) *Service {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}
	if config.Name == "" {
		config.Name = "mock-planner"
	}
	if config.Capabilities == nil {
		config.Capabilities = framework.Capabilities{nav.CapabilityComputePath}
	}
	s := &Service{
		config:      config,
		debugLogger: debugLogger,
		httpClient:  &http.Client{Timeout: time.Second * 2},
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.serveStatus).Methods("GET")
	router.HandleFunc("/plan", s.servePlanRequest).Methods("POST")
	router.HandleFunc("/pose", s.servePoseUpdate).Methods("POST")
	router.HandleFunc("/map", s.serveMapUpdate).Methods("POST")
	s.handler = router

	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RobotPose returns the most recently published robot position.
func (s *Service) RobotPose() nav.Position {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.robotPose
}

func (s *Service) serveStatus(w http.ResponseWriter, r *http.Request) {
	info := struct {
		Name         string                 `json:"name"`
		Capabilities framework.Capabilities `json:"capabilities"`
	}{s.config.Name, s.config.Capabilities}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info)
}

func (s *Service) servePoseUpdate(w http.ResponseWriter, r *http.Request) {
	var update nav.PoseUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.lock.Lock()
	s.robotPose = update.Position
	s.lock.Unlock()
	s.debugLogger.Printf("Robot pose updated to (%.2f, %.2f)", update.Position.X, update.Position.Y)
	w.WriteHeader(http.StatusOK)
}

func (s *Service) serveMapUpdate(w http.ResponseWriter, r *http.Request) {
	// Visualization traffic; acknowledged and otherwise ignored.
	w.WriteHeader(http.StatusOK)
}

func (s *Service) servePlanRequest(w http.ResponseWriter, r *http.Request) {
	var request nav.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.config.AcceptDelay > 0 {
		time.Sleep(s.config.AcceptDelay)
	}

	if s.config.RejectGoals {
		s.debugLogger.Printf("Rejecting goal at (%.2f, %.2f)",
			request.Goal.Position.X, request.Goal.Position.Y)
		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(nav.PlanAcceptance{
			Accepted: false,
			Reason:   s.config.RejectReason,
		})
		return
	}

	planID := uuid.NewString()
	start := s.RobotPose()

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(nav.PlanAcceptance{Accepted: true, PlanID: planID})

	if s.config.NeverSendResult {
		s.debugLogger.Printf("Accepted plan %s but will never answer it", planID)
		return
	}

	go s.deliverResult(planID, start, request)
}

func (s *Service) deliverResult(planID string, start nav.Position, request nav.PlanRequest) {
	if s.config.ResultDelay > 0 {
		time.Sleep(s.config.ResultDelay)
	}

	result := nav.PlanResult{PlanID: planID}
	switch {
	case s.config.ForceResultCode != "":
		result.Code = s.config.ForceResultCode
		result.Path = s.config.ForcePath
	case s.config.ForcePath != nil:
		result.Code = nav.ResultSucceeded
		result.Path = s.config.ForcePath
	default:
		path, ok := PlanPath(s.config.Grid, start, request.Goal.Position)
		if ok {
			result.Code = nav.ResultSucceeded
			result.Path = path
		} else {
			result.Code = nav.ResultAborted
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.debugLogger.Printf("Failed to encode plan result: %s", err)
		return
	}
	resp, err := s.httpClient.Post(request.CallbackURL, "application/json", bytes.NewReader(data))
	if err != nil {
		s.debugLogger.Printf("Failed to deliver plan result: %s", err)
		return
	}
	_ = resp.Body.Close()
	s.debugLogger.Printf("Delivered result for plan %s with code %q", planID, result.Code)
}
