package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

// minUnbounded disables the lower bound check in pathInt
const minUnbounded = math.MinInt

// paramError describes a path or query parameter that failed type checks
type paramError struct {
	location string
	name     string
	reason   string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q: %s", e.location, e.name, e.reason)
}

func pathInt(r *http.Request, name string, min int) (int, error) {
	value, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, &paramError{location: "path", name: name, reason: "must be an integer"}
	}
	if value < min {
		return 0, &paramError{location: "path", name: name, reason: fmt.Sprintf("must be greater than or equal to %d", min)}
	}
	return value, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	query := r.URL.Query()
	if !query.Has(name) {
		return 0, &paramError{location: "query", name: name, reason: "field required"}
	}
	value, err := strconv.Atoi(query.Get(name))
	if err != nil {
		return 0, &paramError{location: "query", name: name, reason: "must be an integer"}
	}
	return value, nil
}
