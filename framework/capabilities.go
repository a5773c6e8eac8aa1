package framework

// Capabilities is a list of strings representing optional features of the
// planner service under test, as reported by its status endpoint.
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	for _, c := range cs {
		if c == name {
			return true
		}
	}
	return false
}
