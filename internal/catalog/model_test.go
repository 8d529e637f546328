package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/stretchr/testify/require"
)

func TestCatalog_UnmarshalWireShape(t *testing.T) {
	body := []byte(`{
		"platforms": ["Web", "iOS"],
		"aiTools": ["Copilot"],
		"sdlcTasks": {"Build": ["Coding"], "Test": []},
		"version": 3
	}`)

	var c catalog.Catalog
	require.NoError(t, json.Unmarshal(body, &c))
	require.Equal(t, []string{"Web", "iOS"}, c.Options(catalog.Platforms))
	require.Equal(t, []string{"Copilot"}, c.Options(catalog.AITools))
	require.Equal(t, []string{"Coding"}, c.TaskOptions("Build"))
	require.Equal(t, []string{}, c.TaskOptions("Test"))
	require.Equal(t, []string{catalog.AITools, catalog.Platforms}, c.Categories())
}

func TestCatalog_UnmarshalRejectsNonObject(t *testing.T) {
	var c catalog.Catalog
	require.Error(t, json.Unmarshal([]byte(`["Web"]`), &c))
}

func TestCatalog_MarshalRoundTrip(t *testing.T) {
	c := catalog.New()
	c.Lists[catalog.Platforms] = []string{"Web"}
	c.Tasks["Build"] = []string{"Coding"}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.JSONEq(t, `{"platforms":["Web"],"sdlcTasks":{"Build":["Coding"]}}`, string(data))
}

func TestCatalog_WithOptionCopies(t *testing.T) {
	c := catalog.New()
	c.Lists[catalog.Platforms] = []string{"Web"}

	next := c.WithOption(catalog.Platforms, "iOS").WithOption(catalog.Platforms, "Web")
	require.Equal(t, []string{"Web", "iOS"}, next.Options(catalog.Platforms))
	require.Equal(t, []string{"Web"}, c.Options(catalog.Platforms))

	next = c.WithTask("Build", "Coding")
	require.Equal(t, []string{"Coding"}, next.TaskOptions("Build"))
	require.Empty(t, c.TaskOptions("Build"))
}

func TestMarkers_UnmarshalForms(t *testing.T) {
	var fromObject catalog.Markers
	require.NoError(t, json.Unmarshal([]byte(`{"1":"new","3":"edited","4":"bogus"}`), &fromObject))
	require.Equal(t, catalog.Markers{1: catalog.MarkerNew, 3: catalog.MarkerEdited}, fromObject)

	var fromArray catalog.Markers
	require.NoError(t, json.Unmarshal([]byte(`[null,"new",null,"edited"]`), &fromArray))
	require.Equal(t, catalog.Markers{1: catalog.MarkerNew, 3: catalog.MarkerEdited}, fromArray)

	var bad catalog.Markers
	require.Error(t, json.Unmarshal([]byte(`{"x":"new"}`), &bad))
}

func TestDelta_MarshalJSON(t *testing.T) {
	d := catalog.Delta{
		Category: catalog.Platforms,
		Values:   []string{"Web", "Desktop"},
		Altered:  catalog.Markers{1: catalog.MarkerNew},
	}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.JSONEq(t, `{"platforms":["Web","Desktop"],"altered":{"platforms":{"1":"new"}}}`, string(data))

	d = catalog.Delta{
		Category:    catalog.Tasks,
		Tasks:       map[string][]string{"Build": {"Coding"}},
		TaskAltered: map[string]catalog.Markers{"Build": {0: catalog.MarkerNew}},
	}
	data, err = json.Marshal(d)
	require.NoError(t, err)
	require.JSONEq(t, `{"sdlcTasks":{"Build":["Coding"]},"altered":{"sdlcTasks":{"Build":{"0":"new"}}}}`, string(data))
}

func TestCheckOption(t *testing.T) {
	require.NoError(t, catalog.CheckOption(catalog.AITools, "Claude"))
	require.NoError(t, catalog.CheckOption(catalog.TaskCategories, "Bug, urgent"))
	require.ErrorIs(t, catalog.CheckOption(catalog.AITools, "Claude,Copilot"), catalog.ErrInvalidOption)
	require.ErrorIs(t, catalog.CheckOption(catalog.Platforms, "  "), catalog.ErrInvalidOption)
	require.ErrorIs(t, catalog.CheckOption("", "Web"), catalog.ErrInvalidOption)
}
