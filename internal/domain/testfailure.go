package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ResultFailure is the only test result the dashboard keeps.
const ResultFailure = "failure"

var testFailureNamespace = uuid.MustParse("3f1d2c52-6b0e-5c55-9a43-1f0c7e6f2a10")

// TestFailureRecord is one row of a job's test metadata.
type TestFailureRecord struct {
	Message   string
	Source    string
	RunTime   float64 // seconds
	File      string  // empty when the reporter gave no file
	Result    string
	Name      string
	Classname string
}

// ID derives a stable identity from every field. CircleCI assigns none.
func (r TestFailureRecord) ID() string {
	key := strings.Join([]string{
		r.Message,
		r.Source,
		strconv.FormatFloat(r.RunTime, 'g', -1, 64),
		r.File,
		r.Result,
		r.Name,
		r.Classname,
	}, "\x00")
	return uuid.NewSHA1(testFailureNamespace, []byte(key)).String()
}

// IsFailure reports whether the row describes a failed test.
func (r TestFailureRecord) IsFailure() bool {
	return r.Result == ResultFailure
}

// Title is the "classname::name" label used in lists.
func (r TestFailureRecord) Title() string {
	return r.Classname + "::" + r.Name
}
