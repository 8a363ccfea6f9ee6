// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/clusterview/internal/dataset"
	"github.com/banshee-data/clusterview/internal/fsutil"
)

// TwoGroupsCSV is a small table whose (x, y) columns form two well
// separated groups.
const TwoGroupsCSV = `x,y,z
1,1,0
1,2,0
9,9,1
9,10,1
`

// NewTestTable parses csv into a table, failing the test on error.
func NewTestTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse test table: %v", err)
	}
	return tbl
}

// NewMemoryDataset returns an in-memory filesystem holding csv at path.
func NewMemoryDataset(path, csv string) *fsutil.MemoryFileSystem {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile(path, []byte(csv))
	return mfs
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// DecodeJSON unmarshals a recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
