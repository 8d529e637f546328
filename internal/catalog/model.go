// Package catalog holds the shared pick-list catalogs and the marker-based
// reconciliation that merges local edits into the server copy.
package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Category names used by the report form.
const (
	Platforms          = "platforms"
	ProjectInitiatives = "projectInitiatives"
	SDLCSteps          = "sdlcSteps"
	TaskCategories     = "taskCategories"
	AITools            = "aiTools"
	Complexities       = "complexity"
	QualityImpacts     = "qualityImpact"
	TeamRoles          = "teamRoles"

	// Tasks is the only category keyed by SDLC step instead of being a flat list.
	Tasks = "sdlcTasks"
)

// DefaultCategories lists the flat categories a store tracks even when the
// server omits them.
var DefaultCategories = []string{
	Platforms,
	ProjectInitiatives,
	SDLCSteps,
	TaskCategories,
	AITools,
	Complexities,
	QualityImpacts,
	TeamRoles,
}

// Marker tags a local slot as added or modified since the last sync.
type Marker string

const (
	MarkerNew    Marker = "new"
	MarkerEdited Marker = "edited"
)

// Markers is a sparse map from local list index to marker.
type Markers map[int]Marker

// UnmarshalJSON accepts both the object form {"1":"new"} and the sparse array
// form [null,"new"]. Unknown marker values are dropped.
func (m *Markers) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid markers json")
	}

	out := Markers{}
	res := gjson.ParseBytes(data)
	switch {
	case res.IsArray():
		idx := 0
		res.ForEach(func(_, v gjson.Result) bool {
			out.put(idx, v.String())
			idx++
			return true
		})
	case res.IsObject():
		var parseErr error
		res.ForEach(func(k, v gjson.Result) bool {
			idx, err := strconv.Atoi(k.String())
			if err != nil || idx < 0 {
				parseErr = fmt.Errorf("invalid marker index %q", k.String())
				return false
			}
			out.put(idx, v.String())
			return true
		})
		if parseErr != nil {
			return parseErr
		}
	case res.Type == gjson.Null:
	default:
		return fmt.Errorf("markers must be an object or array")
	}

	*m = out
	return nil
}

func (m Markers) put(idx int, value string) {
	switch Marker(value) {
	case MarkerNew, MarkerEdited:
		m[idx] = Marker(value)
	}
}

// CheckOption rejects a value that cannot be stored in category. AI tool names
// travel comma-joined inside reports, so they may not contain commas.
func CheckOption(category, value string) error {
	if strings.TrimSpace(value) == "" || category == "" {
		return ErrInvalidOption
	}
	if category == AITools && strings.Contains(value, ",") {
		return fmt.Errorf("%w: %s values cannot contain commas", ErrInvalidOption, AITools)
	}
	return nil
}

// Catalog is one copy (server, local or merged) of every category.
type Catalog struct {
	Lists map[string][]string
	Tasks map[string][]string
}

// New returns an empty catalog ready for writes.
func New() Catalog {
	return Catalog{Lists: map[string][]string{}, Tasks: map[string][]string{}}
}

// Clone deep-copies the catalog.
func (c Catalog) Clone() Catalog {
	out := New()
	for k, v := range c.Lists {
		out.Lists[k] = slices.Clone(v)
	}
	for k, v := range c.Tasks {
		out.Tasks[k] = slices.Clone(v)
	}
	return out
}

// Options returns the list for a flat category.
func (c Catalog) Options(category string) []string {
	return c.Lists[category]
}

// TaskOptions returns the tasks offered for an SDLC step.
func (c Catalog) TaskOptions(step string) []string {
	return c.Tasks[step]
}

// WithOption returns a copy with value appended to category unless present.
func (c Catalog) WithOption(category, value string) Catalog {
	out := c.Clone()
	if !slices.Contains(out.Lists[category], value) {
		out.Lists[category] = append(out.Lists[category], value)
	}
	return out
}

// WithTask returns a copy with value appended to the step's tasks unless present.
func (c Catalog) WithTask(step, value string) Catalog {
	out := c.Clone()
	if !slices.Contains(out.Tasks[step], value) {
		out.Tasks[step] = append(out.Tasks[step], value)
	}
	return out
}

// Categories returns the flat category names present, sorted.
func (c Catalog) Categories() []string {
	return slices.Sorted(maps.Keys(c.Lists))
}

// MarshalJSON writes the wire shape: flat categories as arrays and the task
// map under its own key.
func (c Catalog) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Lists)+1)
	for k, v := range c.Lists {
		if v == nil {
			v = []string{}
		}
		out[k] = v
	}
	if c.Tasks != nil {
		out[Tasks] = c.Tasks
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the wire shape. Values that are neither string arrays
// nor the task map are ignored.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid catalog json")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("catalog must be a json object")
	}

	out := New()
	res.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		switch {
		case name == Tasks && v.IsObject():
			v.ForEach(func(step, tasks gjson.Result) bool {
				out.Tasks[step.String()] = stringArray(tasks)
				return true
			})
		case v.IsArray():
			out.Lists[name] = stringArray(v)
		}
		return true
	})

	*c = out
	return nil
}

func stringArray(v gjson.Result) []string {
	items := v.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}

// Delta is one category's pending local changes, in the shape pushed to the
// reference-data endpoint.
type Delta struct {
	Category    string
	Values      []string
	Altered     Markers
	Tasks       map[string][]string
	TaskAltered map[string]Markers
}

// MarshalJSON writes {"<category>": merged, "altered": {"<category>": markers}}.
func (d Delta) MarshalJSON() ([]byte, error) {
	if d.Category == Tasks {
		return json.Marshal(map[string]any{
			d.Category: d.Tasks,
			"altered":  map[string]any{d.Category: d.TaskAltered},
		})
	}
	return json.Marshal(map[string]any{
		d.Category: d.Values,
		"altered":  map[string]any{d.Category: d.Altered},
	})
}
