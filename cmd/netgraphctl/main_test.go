package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ngapi "netgraph/pkg/netgraph"
)

func writeExample(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"example", "--id", "demo", "--out", path})
	}); err != nil {
		t.Fatalf("example: %v", err)
	}
	return path
}

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "usage: netgraphctl") {
		t.Fatalf("expected usage error, got %v", err)
	}
	err = run(context.Background(), []string{"train"})
	if err == nil || !strings.Contains(err.Error(), "unknown command: train") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestExampleAndValidate(t *testing.T) {
	path := writeExample(t, "model.yaml")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"validate", path})
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"id=demo", "nodes=7", "structures=5", "references=1", "units=5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q: %s", want, out)
		}
	}
}

func TestValidateRejectsMissingFile(t *testing.T) {
	if err := run(context.Background(), []string{"validate"}); err == nil {
		t.Fatal("expected error without model file")
	}
	if err := run(context.Background(), []string{"validate", filepath.Join(t.TempDir(), "absent.json")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConvertYAMLToJSON(t *testing.T) {
	path := writeExample(t, "model.yaml")
	dst := filepath.Join(t.TempDir(), "model.json")

	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"convert", "--out", dst, path})
	}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	m, err := ngapi.ReadModelFile(dst)
	if err != nil {
		t.Fatalf("read converted: %v", err)
	}
	if m.ID != "demo" || m.Summary().Nodes != 7 {
		t.Fatalf("unexpected converted model: %+v", m.Summary())
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"convert", "--format", "yaml", dst})
	})
	if err != nil {
		t.Fatalf("convert to stdout: %v", err)
	}
	if !strings.Contains(out, "id: demo") {
		t.Fatalf("expected yaml on stdout, got: %s", out)
	}
}

func TestLayersJSON(t *testing.T) {
	path := writeExample(t, "model.json")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"layers", "--json", path})
	})
	if err != nil {
		t.Fatalf("layers: %v", err)
	}
	var layers [][]struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(out), &layers); err != nil {
		t.Fatalf("decode layers: %v\n%s", err, out)
	}
	if len(layers) != 4 || len(layers[0]) != 1 || layers[0][0].ID != "input" {
		t.Fatalf("expected input alone in first layer, got %+v", layers)
	}
	seen := 0
	for _, layer := range layers {
		seen += len(layer)
	}
	if seen != 6 {
		t.Fatalf("expected 6 non-root nodes across layers, got %d", seen)
	}
}

func TestCompileReport(t *testing.T) {
	path := writeExample(t, "model.json")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"compile", "--json", "--log-level", "error", "--optimizer", "sgd", "--learning-rate", "0.1", path})
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var report compileReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Passes != 2 || report.Params != 129 || report.Optimizer != "sgd" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Inputs) != 1 || report.Inputs[0].NodeID != "input" || report.Inputs[0].Shape != "[null, 4]" {
		t.Fatalf("unexpected inputs: %+v", report.Inputs)
	}
	if len(report.Outputs) != 1 || report.Outputs[0].NodeID != "output" {
		t.Fatalf("unexpected outputs: %+v", report.Outputs)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"compile", "--log-level", "error", path})
	})
	if err != nil {
		t.Fatalf("compile text: %v", err)
	}
	if !strings.Contains(out, "params=129") || !strings.Contains(out, "optimizer=adam") {
		t.Fatalf("unexpected compile output: %s", out)
	}
}

func TestCompileRejectsBadOptimizer(t *testing.T) {
	path := writeExample(t, "model.json")
	if err := run(context.Background(), []string{"compile", "--optimizer", "lbfgs", path}); err == nil {
		t.Fatal("expected unknown optimizer error")
	}
	if err := run(context.Background(), []string{"compile", "--learning-rate", "-1", path}); err == nil {
		t.Fatal("expected negative learning rate error")
	}
}

func TestPredict(t *testing.T) {
	path := writeExample(t, "model.json")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"predict", "--log-level", "error", "--input", "[[0,0,0,0],[1,2,3,4]]", path})
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	var got [][][]float64
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode predictions: %v\n%s", err, out)
	}
	if len(got) != 1 || len(got[0]) != 2 || len(got[0][0]) != 1 {
		t.Fatalf("unexpected prediction shape: %v", got)
	}
	if got[0][0][0] != 0.5 {
		t.Fatalf("expected 0.5 for zero input, got %v", got[0][0][0])
	}

	if err := run(context.Background(), []string{"predict", path}); err == nil {
		t.Fatal("expected error without --input")
	}
	if err := run(context.Background(), []string{"predict", "--log-level", "error", "--input", "[[1,2]]", path}); err == nil {
		t.Fatal("expected error for short rows")
	}
}

func TestInspect(t *testing.T) {
	path := writeExample(t, "model.json")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"inspect", path})
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"model id=demo name=example",
		"unit id=unit-input type=_input units=0 shape=[4] activation=none",
		"      ref (_reference) -> merge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestStoreCommandsOnMemoryStore(t *testing.T) {
	path := writeExample(t, "model.json")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"save", "--store", "memory", "--log-level", "error", path})
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(out, "saved model id=demo store=memory") {
		t.Fatalf("unexpected save output: %s", out)
	}

	// every invocation opens a fresh in-memory store
	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"list", "--store", "memory", "--log-level", "error"})
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "no models found") {
		t.Fatalf("unexpected list output: %s", out)
	}

	err = run(context.Background(), []string{"get", "--store", "memory", "--log-level", "error", "--id", "demo"})
	if !errors.Is(err, ngapi.ErrModelNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := run(context.Background(), []string{"delete", "--store", "memory"}); err == nil {
		t.Fatal("expected delete without --id to fail")
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
