package bundle

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Bundle describes one produced zip.
type Bundle struct {
	Organization int    `json:"organization"`
	Path         string `json:"path"`
	ItemID       string `json:"item_id"`
	Title        string `json:"title"`
	Mode         Mode   `json:"mode"`
	ZipPath      string `json:"zip_path"`
	// DependencyZip is the original package archive in redirect mode.
	DependencyZip string   `json:"dependency_zip,omitempty"`
	Entry         string   `json:"entry"`
	Files         int      `json:"files"`
	Scorm         bool     `json:"scorm,omitempty"`
	Excluded      int      `json:"excluded,omitempty"`
	Missing       []string `json:"missing,omitempty"`
}

// Failure records a leaf whose bundle could not be produced.
type Failure struct {
	Organization int    `json:"organization"`
	Path         string `json:"path"`
	ItemID       string `json:"item_id"`
	Err          error  `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("item %s (%s): %v", f.ItemID, Key(f.Organization, f.Path), f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// MarshalJSON includes the error text.
func (f Failure) MarshalJSON() ([]byte, error) {
	type failureJSON Failure
	message := ""
	if f.Err != nil {
		message = f.Err.Error()
	}
	return json.Marshal(struct {
		failureJSON
		Error string `json:"error"`
	}{failureJSON(f), message})
}

// Skip records a leaf that was intentionally not bundled.
type Skip struct {
	Organization int    `json:"organization"`
	Path         string `json:"path"`
	ItemID       string `json:"item_id"`
	Reason       string `json:"reason"`
}

// Report is the outcome of a Build call, ordered by leaf position.
type Report struct {
	Bundles  []Bundle  `json:"bundles"`
	Failures []Failure `json:"failures"`
	Skipped  []Skip    `json:"skipped"`
}

// Lookup finds the bundle produced for the leaf at org/path.
func (r *Report) Lookup(org int, path string) (*Bundle, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Bundles {
		if r.Bundles[i].Organization == org && r.Bundles[i].Path == path {
			return &r.Bundles[i], true
		}
	}
	return nil, false
}

// Key renders a leaf position as "organization[N]/path".
func Key(org int, path string) string {
	key := "organization[" + strconv.Itoa(org) + "]"
	if path != "" {
		key += "/" + path
	}
	return key
}
