package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"netgraph/internal/engine"
	"netgraph/internal/engine/dense"
	"netgraph/internal/model"
	"netgraph/internal/node"
	"netgraph/internal/watch"
	ngapi "netgraph/pkg/netgraph"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "validate":
		return runValidate(ctx, args[1:])
	case "convert":
		return runConvert(ctx, args[1:])
	case "layers":
		return runLayers(ctx, args[1:])
	case "compile":
		return runCompile(ctx, args[1:])
	case "predict":
		return runPredict(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "save":
		return runSave(ctx, args[1:])
	case "get":
		return runGet(ctx, args[1:])
	case "list":
		return runList(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "watch":
		return runWatch(ctx, args[1:])
	case "example":
		return runExample(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: netgraphctl <validate|convert|layers|compile|predict|inspect|save|get|list|delete|export|watch|example> [flags] [model-file]", msg)
}

func modelArg(fs *flag.FlagSet) (string, error) {
	path := fs.Arg(0)
	if path == "" {
		return "", fmt.Errorf("%s requires a model file (.json, .yaml or .yml)", fs.Name())
	}
	return path, nil
}

func readModelArg(fs *flag.FlagSet) (*model.Model, string, error) {
	path, err := modelArg(fs)
	if err != nil {
		return nil, "", err
	}
	m, err := ngapi.ReadModelFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return m, path, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeModel(m *model.Model, format string) error {
	f, err := model.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := m.Serialize(f)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return err
	}
	if f == model.FormatJSON {
		fmt.Println()
	}
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := readModelArg(fs)
	if err != nil {
		return err
	}

	s := m.Summary()
	fmt.Printf("valid model id=%s name=%s nodes=%d structures=%d references=%d units=%d layers=%d\n",
		s.ID, s.Name, s.Nodes, s.Structures, s.References, s.Units, s.Layers)
	return nil
}

func runConvert(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	common := addCommonFlags(fs)
	out := fs.String("out", "", "output file; format follows its extension (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	m, path, err := readModelArg(fs)
	if err != nil {
		return err
	}

	if *out == "" {
		return writeModel(m, cfg.Format)
	}
	format, err := model.FormatFromPath(*out)
	if err != nil {
		return err
	}
	data, err := m.Serialize(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("converted %s -> %s\n", filepath.Clean(path), filepath.Clean(*out))
	return nil
}

func runLayers(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("layers", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit layers as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := readModelArg(fs)
	if err != nil {
		return err
	}
	layers, err := m.SplitToLayers()
	if err != nil {
		return err
	}

	if *jsonOut {
		type layerNode struct {
			ID   string    `json:"id"`
			Name string    `json:"name"`
			Type node.Kind `json:"type"`
		}
		items := make([][]layerNode, 0, len(layers))
		for _, layer := range layers {
			row := make([]layerNode, 0, len(layer))
			for _, n := range layer {
				row = append(row, layerNode{ID: n.ID, Name: n.Name, Type: n.Type})
			}
			items = append(items, row)
		}
		return writeJSON(items)
	}

	for i, layer := range layers {
		ids := make([]string, 0, len(layer))
		for _, n := range layer {
			ids = append(ids, n.ID)
		}
		fmt.Printf("layer=%d nodes=%s\n", i, strings.Join(ids, ","))
	}
	return nil
}

type compiledTensor struct {
	NodeID string `json:"node_id"`
	Shape  string `json:"shape"`
}

type compileReport struct {
	ModelID   string           `json:"model_id"`
	Passes    int              `json:"passes"`
	Params    int              `json:"params"`
	Optimizer string           `json:"optimizer"`
	Loss      string           `json:"loss"`
	Metrics   []string         `json:"metrics"`
	Inputs    []compiledTensor `json:"inputs"`
	Outputs   []compiledTensor `json:"outputs"`
}

func runCompile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	common := addCommonFlags(fs)
	optFlags := addOptimizerFlags(fs)
	seed := fs.Uint64("seed", dense.DefaultSeed, "weight initialization seed")
	jsonOut := fs.Bool("json", false, "emit compile report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	opt, err := optFlags.resolve(cfg)
	if err != nil {
		return err
	}
	m, _, err := readModelArg(fs)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := newClient(cfg, log, *seed)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	res, err := client.Compile(ctx, m, opt)
	if err != nil {
		return err
	}

	report := compileReport{
		ModelID:   m.ID,
		Passes:    res.Passes,
		Optimizer: res.Optimizer.Kind(),
		Loss:      res.Executable.Loss(),
		Metrics:   res.Executable.Metrics(),
	}
	if exec, ok := res.Executable.(*dense.Executable); ok {
		report.Params = exec.ParamCount()
	}
	for i, shape := range res.Executable.InputShapes() {
		report.Inputs = append(report.Inputs, compiledTensor{NodeID: res.Inputs[i], Shape: engine.FormatShape(shape)})
	}
	for i, shape := range res.Executable.OutputShapes() {
		report.Outputs = append(report.Outputs, compiledTensor{NodeID: res.Outputs[i], Shape: engine.FormatShape(shape)})
	}
	if *jsonOut {
		return writeJSON(report)
	}

	fmt.Printf("compiled model_id=%s passes=%d params=%s optimizer=%s loss=%s metrics=%s\n",
		report.ModelID, report.Passes, humanize.Comma(int64(report.Params)), report.Optimizer, report.Loss, strings.Join(report.Metrics, ","))
	for _, in := range report.Inputs {
		fmt.Printf("input node=%s shape=%s\n", in.NodeID, in.Shape)
	}
	for _, out := range report.Outputs {
		fmt.Printf("output node=%s shape=%s\n", out.NodeID, out.Shape)
	}
	return nil
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	common := addCommonFlags(fs)
	optFlags := addOptimizerFlags(fs)
	seed := fs.Uint64("seed", dense.DefaultSeed, "weight initialization seed")
	input := fs.String("input", "", "JSON batch for a single-input model, e.g. [[1,2,3,4]]")
	inputs := fs.String("inputs", "", "JSON batches, one per graph input")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*input == "") == (*inputs == "") {
		return errors.New("predict requires exactly one of --input or --inputs")
	}
	var batches [][][]float64
	if *input != "" {
		var batch [][]float64
		if err := json.Unmarshal([]byte(*input), &batch); err != nil {
			return fmt.Errorf("parse --input: %w", err)
		}
		batches = [][][]float64{batch}
	} else if err := json.Unmarshal([]byte(*inputs), &batches); err != nil {
		return fmt.Errorf("parse --inputs: %w", err)
	}

	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	opt, err := optFlags.resolve(cfg)
	if err != nil {
		return err
	}
	m, _, err := readModelArg(fs)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := newClient(cfg, log, *seed)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	res, err := client.Compile(ctx, m, opt)
	if err != nil {
		return err
	}
	out, err := res.Executable.Predict(ctx, batches)
	if err != nil {
		return err
	}
	return writeJSON(out)
}

func runInspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, path, err := readModelArg(fs)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	s := m.Summary()
	fmt.Printf("model id=%s name=%s\n", s.ID, s.Name)
	fmt.Printf("file=%s size=%s\n", filepath.Clean(path), humanize.Bytes(uint64(info.Size())))
	fmt.Printf("created=%s updated=%s trained=%t\n",
		humanize.Time(time.Unix(s.CreatedAt, 0)), humanize.Time(time.Unix(s.UpdatedAt, 0)), s.Trained)
	fmt.Printf("nodes=%s structures=%d references=%d units=%d layers=%d\n",
		humanize.Comma(int64(s.Nodes)), s.Structures, s.References, s.Units, s.Layers)

	for _, u := range m.Units().List() {
		act := "none"
		if u.Activation != nil {
			act = u.Activation.String()
		}
		fmt.Printf("unit id=%s type=%s units=%d shape=%s activation=%s\n",
			u.ID, u.Type, u.Units, engine.FormatShape(u.Shape), act)
	}
	printTree(m.Root(), 0)
	return nil
}

func printTree(n *node.Node, depth int) {
	if n == nil {
		return
	}
	label := fmt.Sprintf("%s (%s)", n.ID, n.Type)
	switch n.Type {
	case node.Struct:
		label += " unit=" + n.UnitID
	case node.Reference:
		label += " -> " + n.TargetID
	}
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), label)
	for _, child := range n.Children {
		printTree(child, depth+1)
	}
}

func runSave(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := modelArg(fs)
	if err != nil {
		return err
	}
	client, cfg, cleanup, err := openStore(ctx, common)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := client.Import(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("saved model id=%s store=%s\n", m.ID, cfg.Store)
	return nil
}

func runGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "model id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("get requires --id")
	}
	client, cfg, cleanup, err := openStore(ctx, common)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := client.Get(ctx, *id)
	if err != nil {
		return err
	}
	return writeModel(m, cfg.Format)
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	common := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit model list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, cleanup, err := openStore(ctx, common)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := client.List(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		if items == nil {
			items = []model.Summary{}
		}
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no models found")
		return nil
	}
	for _, s := range items {
		fmt.Printf("id=%s name=%s nodes=%d units=%d layers=%d updated=%s\n",
			s.ID, s.Name, s.Nodes, s.Units, s.Layers, humanize.Time(time.Unix(s.UpdatedAt, 0)))
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "model id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("delete requires --id")
	}
	client, _, cleanup, err := openStore(ctx, common)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deleted model id=%s\n", *id)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "model id")
	outDir := fs.String("out", "exports", "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("export requires --id")
	}
	client, cfg, cleanup, err := openStore(ctx, common)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := client.Export(ctx, ngapi.ExportRequest{ID: *id, Format: model.Format(cfg.Format), OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported model id=%s to=%s\n", summary.ID, filepath.Clean(summary.Path))
	return nil
}

// openStore resolves config, builds a client and initializes its store.
func openStore(ctx context.Context, common *commonFlags) (*ngapi.Client, configView, func(), error) {
	cfg, err := common.resolve()
	if err != nil {
		return nil, configView{}, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, configView{}, nil, err
	}
	client, err := newClient(cfg, log, dense.DefaultSeed)
	if err != nil {
		return nil, configView{}, nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, configView{}, nil, err
	}
	cleanup := func() {
		_ = client.Close()
		_ = log.Sync()
	}
	return client, configView{Store: cfg.Store, Format: cfg.Format}, cleanup, nil
}

type configView struct {
	Store  string
	Format string
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	common := addCommonFlags(fs)
	debounce := fs.Duration("debounce", watch.DefaultDebounce, "quiet period before reloading")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := modelArg(fs)
	if err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	report := func(m *model.Model, err error) {
		if err != nil {
			fmt.Printf("invalid model file=%s error=%v\n", filepath.Clean(path), err)
			return
		}
		s := m.Summary()
		fmt.Printf("model id=%s nodes=%d units=%d layers=%d\n", s.ID, s.Nodes, s.Units, s.Layers)
	}
	w, err := watch.New(path, report, watch.WithLogger(log), watch.WithDebounce(*debounce))
	if err != nil {
		return err
	}
	report(w.Load())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return w.Run(ctx)
}

func runExample(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("example", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "model id (random when empty)")
	out := fs.String("out", "", "output file; format follows its extension (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	var opts []model.Option
	if *id != "" {
		opts = append(opts, model.WithID(*id))
	}
	m, err := model.NewExample(opts...)
	if err != nil {
		return err
	}
	if *out == "" {
		return writeModel(m, cfg.Format)
	}
	format, err := model.FormatFromPath(*out)
	if err != nil {
		return err
	}
	data, err := m.Serialize(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote example model id=%s to=%s\n", m.ID, filepath.Clean(*out))
	return nil
}
