package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campusnerd/internal/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string, schema Schema) *Tool {
	return &Tool{
		Name:        name,
		Description: "Echo tool",
		Schema:      schema,
		Returns:     "string",
		Execute: func(ctx context.Context, env Env, args map[string]any) (string, error) {
			return "ok", nil
		},
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)
	assert.Zero(t, reg.Count())
}

func TestRegister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool("a", Schema{})))

	err := reg.Register(echoTool("a", Schema{}))
	assert.ErrorIs(t, err, ErrToolAlreadyRegistered)

	assert.ErrorIs(t, reg.Register(&Tool{Execute: echoTool("x", Schema{}).Execute}), ErrToolNameEmpty)
	assert.ErrorIs(t, reg.Register(&Tool{Name: "nil_exec"}), ErrToolExecuteNil)
	assert.ErrorIs(t, reg.Register(nil), ErrToolNameEmpty)

	assert.True(t, reg.Has("a"))
	assert.False(t, reg.Has("nil_exec"))
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoTool("dupe", Schema{}))
	assert.Panics(t, func() { reg.MustRegister(echoTool("dupe", Schema{})) })
}

func TestSpecsAreImmutableCopies(t *testing.T) {
	reg := NewRegistry()
	tool := echoTool("search", Schema{
		Required:   []string{"q"},
		Properties: map[string]Property{"q": {Type: "string", Description: "query"}},
	})
	require.NoError(t, reg.Register(tool))

	// Mutating the original or a returned spec does not affect the registry.
	tool.Schema.Properties["q"] = Property{Type: "integer"}
	spec, ok := reg.Spec("search")
	require.True(t, ok)
	spec.Parameters.Properties["q"] = Property{Type: "boolean"}

	again, _ := reg.Spec("search")
	assert.Equal(t, "string", again.Parameters.Properties["q"].Type)
}

func TestSpecsSorted(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoTool("zeta", Schema{}))
	reg.MustRegister(echoTool("alpha", Schema{}))

	specs := reg.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
}

func TestInvoke_UnknownToolIsNeverExecuted(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoTool("list_courses", Schema{}))

	obs := reg.Invoke(context.Background(), Env{}, "rm_rf", nil)
	require.True(t, obs.Failed())
	assert.ErrorIs(t, obs.Err, ErrUnknownTool)
	assert.ErrorIs(t, obs.Err, ErrToolInvocation)
	assert.Equal(t, KindToolInvocation, obs.Kind)
	assert.Contains(t, obs.Text(), "list_courses", "the observation lists the valid tools")
}

func TestInvoke_Success(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoTool("echo", Schema{}))

	obs := reg.Invoke(context.Background(), Env{}, "echo", map[string]any{})
	require.False(t, obs.Failed())
	assert.Equal(t, "ok", obs.Content)
	assert.Equal(t, "ok", obs.Text())
	assert.Equal(t, KindNone, obs.Kind)
}

func TestInvoke_RecoversPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name: "boom",
		Execute: func(context.Context, Env, map[string]any) (string, error) {
			panic("nil map")
		},
	})

	obs := reg.Invoke(context.Background(), Env{}, "boom", nil)
	require.True(t, obs.Failed())
	assert.ErrorIs(t, obs.Err, ErrToolPanic)
	assert.Equal(t, KindInternal, obs.Kind)
}

func TestSchemaValidate(t *testing.T) {
	schema := Schema{
		Required: []string{"name"},
		Properties: map[string]Property{
			"name":  {Type: "string"},
			"limit": {Type: "integer"},
			"ratio": {Type: "number"},
			"all":   {Type: "boolean"},
			"tags":  {Type: "array"},
			"sort":  {Type: "string", Enum: []any{"asc", "desc"}},
		},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"minimal", map[string]any{"name": "x"}, false},
		{"json numbers", map[string]any{"name": "x", "limit": float64(3), "ratio": 0.5}, false},
		{"everything", map[string]any{"name": "x", "all": true, "tags": []any{"a"}, "sort": "asc"}, false},
		{"missing required", map[string]any{"limit": float64(3)}, true},
		{"unknown key", map[string]any{"name": "x", "extra": 1}, true},
		{"wrong type", map[string]any{"name": 3}, true},
		{"fractional integer", map[string]any{"name": "x", "limit": 2.5}, true},
		{"enum violation", map[string]any{"name": "x", "sort": "random"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("empty schema rejects any argument", func(t *testing.T) {
		assert.NoError(t, Schema{}.Validate(nil))
		assert.NoError(t, Schema{}.Validate(map[string]any{}))
		err := Schema{}.Validate(map[string]any{"category": "Sciences"})
		require.ErrorIs(t, err, ErrInvalidArguments)
		assert.Contains(t, err.Error(), "takes no arguments")
	})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindAuth, Classify(extract.ErrAuthentication))
	assert.Equal(t, KindScrapeParse, Classify(extract.ErrScrapeParse))
	assert.Equal(t, KindNetwork, Classify(extract.ErrNetwork))
	assert.Equal(t, KindToolInvocation, Classify(ErrInvalidArguments))
	assert.Equal(t, KindCanceled, Classify(context.Canceled))
	assert.Equal(t, KindInternal, Classify(errors.New("other")))
}

func TestObservationText_ScrapeParse(t *testing.T) {
	obs := failed("list_courses", extract.ErrScrapeParse, time.Now())
	text := obs.Text()
	assert.True(t, strings.HasPrefix(text, "ERROR [scrape_parse]"))
	assert.Contains(t, text, "could not be retrieved")
}

func TestDescribe(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoTool("list_courses", Schema{}))
	reg.MustRegister(echoTool("search", Schema{
		Required:   []string{"q"},
		Properties: map[string]Property{"q": {Type: "string", Description: "query"}},
	}))

	out := reg.Describe()
	assert.Contains(t, out, "- list_courses: Echo tool")
	assert.Contains(t, out, "Parameters: none")
	assert.Contains(t, out, "- q (string, required): query")
	assert.Contains(t, out, "Returns: string")
}
