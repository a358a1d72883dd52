package netgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"netgraph/internal/model"
	"netgraph/internal/optimizer"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		ExportsDir: filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientSaveGetListDelete(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	m, err := model.NewExample(model.WithID("m-1"))
	if err != nil {
		t.Fatalf("example: %v", err)
	}
	if err := client.Save(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := client.Get(ctx, "m-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != m.Name {
		t.Fatalf("unexpected model name %q", loaded.Name)
	}

	list, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "m-1" {
		t.Fatalf("unexpected listing: %+v", list)
	}

	if err := client.Delete(ctx, "m-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.Delete(ctx, "m-1"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := client.Get(ctx, "m-1"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientExportImport(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	m, err := model.NewExample(model.WithID("m-2"))
	if err != nil {
		t.Fatalf("example: %v", err)
	}
	if err := client.Save(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}

	summary, err := client.Export(ctx, ExportRequest{ID: "m-2", Format: model.FormatYAML})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Base(summary.Path) != "m-2.yaml" {
		t.Fatalf("unexpected export path %s", summary.Path)
	}
	if _, err := os.Stat(summary.Path); err != nil {
		t.Fatalf("stat export: %v", err)
	}

	other := newClient(t)
	imported, err := other.Import(ctx, summary.Path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.ID != "m-2" {
		t.Fatalf("unexpected imported id %q", imported.ID)
	}
	if _, err := other.Get(ctx, "m-2"); err != nil {
		t.Fatalf("get imported: %v", err)
	}
}

func TestClientCompile(t *testing.T) {
	client := newClient(t)
	m, err := model.NewExample()
	if err != nil {
		t.Fatalf("example: %v", err)
	}
	res, err := client.Compile(context.Background(), m, optimizer.New(optimizer.SGD))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, err := res.Executable.Predict(context.Background(), [][][]float64{{{1, 2, 3, 4}}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 1 || len(out[0][0]) != 1 {
		t.Fatalf("unexpected prediction shape: %v", out)
	}
}

func TestReadModelFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.toml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadModelFile(path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
