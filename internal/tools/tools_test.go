package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vecnet/vecnet.openmalaria/internal/expand"
	"github.com/vecnet/vecnet.openmalaria/internal/manifest"
	"go.uber.org/zap"
)

// --- Test helpers ---

const malariaExperiment = `{
	"name": "Experiment 1",
	"base": "<xml seed=\"@seed@\"> @itn@ @irs@ @model@ </xml>",
	"sweeps": {
		"itn": {"itn80": {"@itn@": 80}, "itn90": {"@itn@": 90}},
		"irs": {"irs66": {"@irs@": "66"}, "irs77": {"@irs@": "77"}},
		"model": {
			"m1": {"@model@": "model1"},
			"m2": {"@model@": "model2"},
			"m3": {"@model@": "model3"}
		}
	},
	"combinations": [
		["itn", "irs"],
		["itn80", "irs66"],
		["itn80", "irs77"],
		["itn90", "irs66"]
	]
}`

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newTestStore(t *testing.T) *manifest.Store {
	t.Helper()
	store, err := manifest.New(manifest.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustHandle(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if result == nil {
		t.Fatal("nil result")
	}
	return result
}

// --- Shared argument handling ---

func TestLoadExperiment_ArgumentErrors(t *testing.T) {
	tool := NewInspectTool(zap.NewNop())
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"neither", map[string]interface{}{}, "one of 'description' or 'path'"},
		{"both", map[string]interface{}{"description": "{}", "path": "x.json"}, "mutually exclusive"},
		{"not a mapping", map[string]interface{}{"description": "[1, 2]"}, "failed to parse"},
		{"missing base", map[string]interface{}{"description": `{"sweeps": {}}`}, "failed to parse"},
		{"missing file", map[string]interface{}{"path": "/does/not/exist.yaml"}, "failed to load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustHandle(t, tool.Handle, tt.args)
			if !result.IsError {
				t.Fatalf("expected tool error, got: %s", resultText(result))
			}
			if !strings.Contains(resultText(result), tt.want) {
				t.Errorf("error %q should contain %q", resultText(result), tt.want)
			}
		})
	}
}

func TestLoadExperiment_PathResolvesBasefile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.xml"), []byte("<xml>@itn@</xml>"), 0o644); err != nil {
		t.Fatal(err)
	}
	desc := "basefile: base.xml\nsweeps:\n  itn:\n    a: {\"@itn@\": 1}\n    b: {\"@itn@\": 2}\n"
	path := filepath.Join(dir, "exp.yaml")
	if err := os.WriteFile(path, []byte(desc), 0o644); err != nil {
		t.Fatal(err)
	}

	exp, source, errResult := loadExperiment(makeReq(map[string]interface{}{"path": path}), zap.NewNop())
	if errResult != nil {
		t.Fatalf("unexpected error: %s", resultText(errResult))
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if exp.Base() != "<xml>@itn@</xml>" {
		t.Errorf("base = %q", exp.Base())
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ n, def, max, want int }{
		{0, 3, 50, 3},
		{-1, 3, 50, 3},
		{7, 3, 50, 7},
		{500, 3, 50, 50},
	}
	for _, tt := range tests {
		if got := clamp(tt.n, tt.def, tt.max); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.n, tt.def, tt.max, got, tt.want)
		}
	}
}

// --- experiment_inspect ---

func TestInspectTool_Definition(t *testing.T) {
	def := NewInspectTool(zap.NewNop()).Definition()
	if def.Name != "experiment_inspect" {
		t.Errorf("Name = %q", def.Name)
	}
	for _, p := range []string{"description", "path"} {
		if _, ok := def.InputSchema.Properties[p]; !ok {
			t.Errorf("missing property %q", p)
		}
	}
}

func TestInspectTool_Summary(t *testing.T) {
	tool := NewInspectTool(zap.NewNop())
	result := mustHandle(t, tool.Handle, map[string]interface{}{"description": malariaExperiment})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}

	text := resultText(result)
	for _, want := range []string{
		"## Experiment: Experiment 1",
		"**Scenarios**: 9",
		"**Sweeps** (3)",
		"itn: 2 arms (itn80, itn90)",
		"model: 3 arms (m1, m2, m3)",
		"default: [itn, irs], 3 assignments",
		"**Fully factorial**: model",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestInspectTool_NoSweeps(t *testing.T) {
	tool := NewInspectTool(zap.NewNop())
	result := mustHandle(t, tool.Handle, map[string]interface{}{"description": `{"base": "<x/>"}`})
	text := resultText(result)
	if !strings.Contains(text, "**Scenarios**: 1") || !strings.Contains(text, "**Sweeps**: none") {
		t.Errorf("unexpected summary:\n%s", text)
	}
	if !strings.Contains(text, "Unnamed Experiment") {
		t.Errorf("expected default name:\n%s", text)
	}
}

// --- experiment_preview ---

func TestPreviewTool_LimitAndSeed(t *testing.T) {
	tool := NewPreviewTool(expand.New(nil, zap.NewNop()), zap.NewNop())
	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description": malariaExperiment,
		"limit":       float64(2),
		"seed":        true,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}

	text := resultText(result)
	if !strings.Contains(text, "Showing 2 of 9 scenarios.") {
		t.Errorf("missing count line:\n%s", text)
	}
	if strings.Count(text, "### Scenario ") != 2 {
		t.Errorf("expected 2 scenarios:\n%s", text)
	}
	if !strings.Contains(text, "(seed 1009)") || !strings.Contains(text, `seed="1009"`) {
		t.Errorf("expected first seed 1009:\n%s", text)
	}
}

func TestPreviewTool_SeedPlaceholderMissing(t *testing.T) {
	tool := NewPreviewTool(expand.New(nil, zap.NewNop()), zap.NewNop())
	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description": `{"base": "<x/>"}`,
		"seed":        true,
	})
	if !result.IsError {
		t.Fatalf("expected tool error, got: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), "invalid experiment") {
		t.Errorf("unexpected error text: %s", resultText(result))
	}
}

func TestPreviewTool_UnknownArm(t *testing.T) {
	tool := NewPreviewTool(expand.New(nil, zap.NewNop()), zap.NewNop())
	desc := `{"base": "@a@", "sweeps": {"s": {"x": {"@a@": "1"}}}, "combinations": [["s"], ["nope"]]}`
	result := mustHandle(t, tool.Handle, map[string]interface{}{"description": desc})
	if !result.IsError {
		t.Fatalf("expected tool error, got: %s", resultText(result))
	}
}

// --- experiment_expand ---

func TestExpandTool_WritesScenarios(t *testing.T) {
	store := newTestStore(t)
	out := filepath.Join(t.TempDir(), "scenarios")
	tool := NewExpandTool(expand.New(store, zap.NewNop()), ExpandDefaults{ManifestFile: "manifest.csv", SeedFloor: 1000}, zap.NewNop())

	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description": malariaExperiment,
		"output_dir":  out,
		"seed":        true,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}

	text := resultText(result)
	if !strings.HasPrefix(text, "9 scenarios generated") {
		t.Errorf("unexpected result:\n%s", text)
	}
	if !strings.Contains(text, "**Run ID**") {
		t.Errorf("expected run id:\n%s", text)
	}
	for i := 1; i <= 9; i++ {
		if _, err := os.Stat(filepath.Join(out, fmt.Sprintf("scenario%d.xml", i))); err != nil {
			t.Errorf("scenario %d not written: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "manifest.csv")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CompletedRuns != 1 || stats.TotalScenarios != 9 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestExpandTool_NoManifestCustomPattern(t *testing.T) {
	out := t.TempDir()
	tool := NewExpandTool(expand.New(nil, zap.NewNop()), ExpandDefaults{}, zap.NewNop())

	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description":  malariaExperiment,
		"output_dir":   out,
		"file_pattern": "run-%d.xml",
		"manifest":     false,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}
	if _, err := os.Stat(filepath.Join(out, "run-9.xml")); err != nil {
		t.Errorf("expected run-9.xml: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "manifest.csv")); !os.IsNotExist(err) {
		t.Errorf("manifest should not exist, stat err = %v", err)
	}
	if strings.Contains(resultText(result), "Run ID") {
		t.Error("no run id expected without a store")
	}
}

func TestExpandTool_EmptyManifestDefaultWritesNone(t *testing.T) {
	out := t.TempDir()
	tool := NewExpandTool(expand.New(nil, zap.NewNop()), ExpandDefaults{}, zap.NewNop())

	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description": malariaExperiment,
		"output_dir":  out,
		"manifest":    true,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}
	if _, err := os.Stat(filepath.Join(out, "scenario1.xml")); err != nil {
		t.Errorf("expected scenario1.xml: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "manifest.csv")); !os.IsNotExist(err) {
		t.Errorf("manifest should not exist, stat err = %v", err)
	}
}

func TestExpandTool_Validation(t *testing.T) {
	tool := NewExpandTool(expand.New(nil, zap.NewNop()), ExpandDefaults{}, zap.NewNop())
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing output", map[string]interface{}{"description": malariaExperiment}, "'output_dir' is required"},
		{"bad pattern", map[string]interface{}{"description": malariaExperiment, "output_dir": t.TempDir(), "file_pattern": "fixed.xml"}, "%d"},
		{"seed without placeholder", map[string]interface{}{"description": `{"base": "<x/>"}`, "output_dir": t.TempDir(), "seed": true}, "expansion failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustHandle(t, tool.Handle, tt.args)
			if !result.IsError {
				t.Fatalf("expected tool error, got: %s", resultText(result))
			}
			if !strings.Contains(resultText(result), tt.want) {
				t.Errorf("error %q should contain %q", resultText(result), tt.want)
			}
		})
	}
}

// --- run_list / run_get / run_stats ---

func seedRun(t *testing.T, store *manifest.Store) string {
	t.Helper()
	tool := NewExpandTool(expand.New(store, zap.NewNop()), ExpandDefaults{}, zap.NewNop())
	result := mustHandle(t, tool.Handle, map[string]interface{}{
		"description": malariaExperiment,
		"output_dir":  t.TempDir(),
		"seed":        true,
	})
	if result.IsError {
		t.Fatalf("seed run: %s", resultText(result))
	}
	runs, err := store.RecentRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("seed run: %v, %d runs", err, len(runs))
	}
	return runs[0].ID
}

func TestRunListTool(t *testing.T) {
	store := newTestStore(t)
	tool := NewRunListTool(store)

	empty := mustHandle(t, tool.Handle, map[string]interface{}{})
	if !strings.Contains(resultText(empty), "No runs recorded yet.") {
		t.Errorf("unexpected empty listing: %s", resultText(empty))
	}

	id := seedRun(t, store)
	result := mustHandle(t, tool.Handle, map[string]interface{}{"limit": float64(5)})
	text := resultText(result)
	if !strings.Contains(text, id) || !strings.Contains(text, "Experiment 1") || !strings.Contains(text, "completed") {
		t.Errorf("unexpected listing:\n%s", text)
	}
}

func TestRunGetTool_Markdown(t *testing.T) {
	store := newTestStore(t)
	id := seedRun(t, store)
	tool := NewRunGetTool(store)

	result := mustHandle(t, tool.Handle, map[string]interface{}{"run_id": id})
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(result))
	}
	text := resultText(result)
	for _, want := range []string{"## Run " + id, "**Status**: completed", "**Scenarios**: 9", "seed=1009", "itn=itn80"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q:\n%s", want, text)
		}
	}
}

func TestRunGetTool_JSON(t *testing.T) {
	store := newTestStore(t)
	id := seedRun(t, store)
	tool := NewRunGetTool(store)

	result := mustHandle(t, tool.Handle, map[string]interface{}{"run_id": id, "format": "json"})
	var data manifest.ExportData
	if err := json.Unmarshal([]byte(resultText(result)), &data); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, resultText(result))
	}
	if data.Run.ID != id || len(data.Scenarios) != 9 {
		t.Errorf("unexpected export: run=%s scenarios=%d", data.Run.ID, len(data.Scenarios))
	}
}

func TestRunGetTool_Errors(t *testing.T) {
	tool := NewRunGetTool(newTestStore(t))

	missing := mustHandle(t, tool.Handle, map[string]interface{}{})
	if !missing.IsError || !strings.Contains(resultText(missing), "'run_id' is required") {
		t.Errorf("unexpected: %s", resultText(missing))
	}

	unknown := mustHandle(t, tool.Handle, map[string]interface{}{"run_id": "nope"})
	if !unknown.IsError || !strings.Contains(resultText(unknown), "not found") {
		t.Errorf("unexpected: %s", resultText(unknown))
	}
}

func TestRunStatsTool(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store)
	tool := NewRunStatsTool(store)

	text := resultText(mustHandle(t, tool.Handle, map[string]interface{}{}))
	for _, want := range []string{"**Runs**: 1", "**Completed**: 1", "**Failed**: 0", "**Scenarios**: 9"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q:\n%s", want, text)
		}
	}
}
