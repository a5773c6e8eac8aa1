package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
)

// PlannerServiceInfo is status information returned by the planner service
// from the initial status query.
type PlannerServiceInfo struct {
	PlannerServiceInfoBase

	// FullData is the entire response received from the planner service, which
	// might contain additional properties beyond PlannerServiceInfoBase.
	FullData []byte
}

// PlannerServiceInfoBase is the basic set of properties that all planner
// services must provide.
type PlannerServiceInfoBase struct {
	// Name is the name of the planner under test, such as "navfn".
	Name string `json:"name"`

	// Capabilities is a list of strings representing optional features of the
	// planner service.
	Capabilities framework.Capabilities `json:"capabilities"`
}

func queryPlannerServiceInfo(url string, timeout time.Duration, output io.Writer) (PlannerServiceInfo, error) {
	fmt.Fprintf(output, "Connecting to planner service at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := http.DefaultClient.Get(url + "/status")
		if err == nil {
			fmt.Fprintln(output)
			if resp.StatusCode != 200 {
				return PlannerServiceInfo{}, fmt.Errorf("planner service returned status code %d", resp.StatusCode)
			}
			if resp.Body == nil {
				fmt.Fprintf(output, "Status query successful, but service provided no metadata\n")
				return PlannerServiceInfo{}, nil
			}
			respData, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return PlannerServiceInfo{}, err
			}
			fmt.Fprintf(output, "Status query returned metadata: %s\n", string(respData))
			var base PlannerServiceInfoBase
			if err := json.Unmarshal(respData, &base); err != nil {
				return PlannerServiceInfo{}, fmt.Errorf("malformed status response from planner service: %s",
					string(respData))
			}
			return PlannerServiceInfo{PlannerServiceInfoBase: base, FullData: respData}, nil
		}
		if !time.Now().Before(deadline) {
			return PlannerServiceInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// StopService tells the planner service that it should exit.
func (h *TestHarness) StopService() error {
	req, _ := http.NewRequest("DELETE", h.plannerBaseURL, nil)
	resp, err := http.DefaultClient.Do(req)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil && resp.StatusCode >= 300 {
		return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
	}
	// It's normal for the request to return an I/O error if the service immediately quit before sending a response
	return nil
}
