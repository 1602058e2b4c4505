package domain

import (
	"strconv"
)

// IntraExecutionData carries state from one script execution to the next
// within a plan: the last completed iteration, the last outcome, stop flags
// and variables set during the run.
type IntraExecutionData map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (d IntraExecutionData) Clone() IntraExecutionData {
	c := make(IntraExecutionData, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Bool reads a boolean entry. Missing or malformed entries are false.
func (d IntraExecutionData) Bool(key string) bool {
	b, err := strconv.ParseBool(d[key])
	return err == nil && b
}

// Int reads an integer entry. Missing or malformed entries are 0.
func (d IntraExecutionData) Int(key string) int {
	n, err := strconv.Atoi(d[key])
	if err != nil {
		return 0
	}
	return n
}
