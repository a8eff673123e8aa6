package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testModel = `
name: mlp
tensors:
  x:   {dtype: f32, dims: [1, 4], kind: input}
  w1:  {dtype: f32, dims: [4, 8], kind: param}
  h1:  {dtype: f32, dims: [1, 8]}
  h1r: {dtype: f32, dims: [1, 8]}
  y:   {dtype: f32, dims: [1, 2]}
  w2:  {dtype: f32, dims: [8, 2], kind: param}
ops:
  - {name: fc1, type: Gemm, inputs: [x, w1], outputs: [h1]}
  - {name: act1, type: Relu, inputs: [h1], outputs: [h1r]}
  - {name: fc2, type: Gemm, inputs: [h1r, w2], outputs: [y]}
outputs: [y]
`

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(testModel), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

// runCLI executes the root command with args and returns captured stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScheduleCommand(t *testing.T) {
	path := writeModel(t)
	out, err := runCLI(t, "schedule", path, "--no-store", "--log-level", "error")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	lines := strings.Fields(out)
	want := []string{"fc1", "act1", "fc2"}
	if len(lines) != len(want) {
		t.Fatalf("output = %q, want 3 op names", out)
	}
	for i, n := range want {
		if lines[i] != n {
			t.Errorf("line %d = %q, want %q", i, lines[i], n)
		}
	}
}

func TestScheduleCommand_StoresRun(t *testing.T) {
	path := writeModel(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	if _, err := runCLI(t, "schedule", path, "--db", db, "--log-level", "error"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	out, err := runCLI(t, "runs", "list", "--db", db, "--log-level", "error")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(out, "mlp") || !strings.Contains(out, "hier") {
		t.Errorf("runs list output missing the recorded run:\n%s", out)
	}
}

func TestScheduleCommand_MissingFile(t *testing.T) {
	_, err := runCLI(t, "schedule", "/does/not/exist.yaml", "--no-store", "--log-level", "error")
	if err == nil {
		t.Fatal("schedule of missing file succeeded")
	}
}

func TestScheduleCommand_BadAlgorithm(t *testing.T) {
	path := writeModel(t)
	_, err := runCLI(t, "schedule", path, "--algo", "greedy", "--no-store", "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "unknown algorithm") {
		t.Fatalf("error = %v, want unknown algorithm", err)
	}
}

func TestVizCommand(t *testing.T) {
	path := writeModel(t)
	out, err := runCLI(t, "viz", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("viz: %v", err)
	}
	for _, want := range []string{"digraph", "fc1:Gemm", "act1:Relu"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
}

func TestVizCommand_Scheduled(t *testing.T) {
	path := writeModel(t)
	outFile := filepath.Join(t.TempDir(), "g.dot")
	if _, err := runCLI(t, "viz", path, "--sched", "-o", outFile, "--log-level", "error"); err != nil {
		t.Fatalf("viz --sched: %v", err)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read DOT: %v", err)
	}
	if !strings.Contains(string(data), "0:Gemm") {
		t.Errorf("scheduled DOT missing position labels:\n%s", data)
	}
}

func TestRunsShowAndRm(t *testing.T) {
	path := writeModel(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	if _, err := runCLI(t, "schedule", path, "--db", db, "--log-level", "error"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	out, err := runCLI(t, "runs", "list", "--db", db, "--log-level", "error")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	var runID string
	for _, f := range strings.Fields(out) {
		if strings.HasPrefix(f, "run_") {
			runID = f
			break
		}
	}
	if runID == "" {
		t.Fatalf("no run ID in list output:\n%s", out)
	}

	out, err = runCLI(t, "runs", "show", runID, "--db", db, "--log-level", "error")
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(out, "Schedule:") || !strings.Contains(out, "fc1") {
		t.Errorf("runs show output incomplete:\n%s", out)
	}

	if _, err := runCLI(t, "runs", "rm", runID, "--db", db, "--log-level", "error"); err != nil {
		t.Fatalf("runs rm: %v", err)
	}
	out, _ = runCLI(t, "runs", "list", "--db", db, "--log-level", "error")
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("run not deleted:\n%s", out)
	}
}
