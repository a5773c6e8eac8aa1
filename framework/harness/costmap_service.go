package harness

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/nav"
)

// RegionSource is the capability the costmap service needs from a grid:
// answering sub-window snapshot queries.
type RegionSource interface {
	Region(specs nav.CostmapSpecs) nav.CostmapRegion
}

// CostmapService serves grid snapshots to the planner on a callback endpoint.
// Requests are answered on the spin loop, so snapshots never interleave with
// other harness traffic.
type CostmapService struct {
	endpoint *CallbackEndpoint
	source   RegionSource
	logger   framework.Logger
}

// NewCostmapService registers the costmap query endpoint with the harness.
// The source must be set before starting the service.
func NewCostmapService(h *TestHarness, source RegionSource, logger framework.Logger) *CostmapService {
	if logger == nil {
		logger = h.logger
	}
	s := &CostmapService{source: source, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/costmap", s.serveCostmapRequest).Methods("POST")
	s.endpoint = h.NewCallbackEndpoint(router, "costmap service", logger)

	return s
}

// URL returns the externally visible URL of the costmap query endpoint.
func (s *CostmapService) URL() string {
	return s.endpoint.BaseURL() + "/costmap"
}

// SetSource swaps the grid the service answers from, e.g. when a map is
// loaded after the harness was constructed.
func (s *CostmapService) SetSource(source RegionSource) {
	// Runs only between trials, and reads happen on the spin loop.
	s.source = source
}

// Close unregisters the endpoint.
func (s *CostmapService) Close() {
	s.endpoint.Close()
}

func (s *CostmapService) serveCostmapRequest(w http.ResponseWriter, r *http.Request) {
	s.logger.Printf("Incoming costmap request")

	var specs nav.CostmapSpecs
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	region := s.source.Region(specs)

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(region)
}
