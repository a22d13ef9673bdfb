package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/bundler"
	"github.com/wolfeidau/assetpack/internal/descriptor"
)

type stubBundler struct {
	plans []*bundler.Plan
}

func (s *stubBundler) Bundle(_ context.Context, plan *bundler.Plan) (*bundler.Result, error) {
	s.plans = append(s.plans, plan)
	if err := os.WriteFile(plan.Outfile, []byte("bundle"), 0o600); err != nil {
		return nil, err
	}
	return &bundler.Result{BuildID: plan.BuildID, Files: []string{plan.Outfile}, Bytes: 6}, nil
}

func initProject(t *testing.T, format string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	cmd := &InitCmd{Dir: dir, Format: format, Scaffold: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)}))

	return dir, filepath.Join(dir, "assetpack."+format)
}

func TestInitCmd_Run(t *testing.T) {
	out := new(bytes.Buffer)
	dir := t.TempDir()

	cmd := &InitCmd{Dir: dir, Format: "yaml", Scaffold: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: out}))

	assert.FileExists(t, filepath.Join(dir, "assetpack.yaml"))
	assert.FileExists(t, filepath.Join(dir, "src", "index.js"))
	assert.FileExists(t, filepath.Join(dir, "src", "style.scss"))
	assert.Contains(t, out.String(), "assetpack.yaml")

	d, err := descriptor.Load(filepath.Join(dir, "assetpack.yaml"))
	require.NoError(t, err)
	assert.Equal(t, descriptor.ModeDevelopment, d.Mode)
	assert.Equal(t, []string{descriptor.StepStyle, descriptor.StepCSS, descriptor.StepSass}, d.Module.Rules[0].Use)
}

func TestInitCmd_Duplicate(t *testing.T) {
	dir, _ := initProject(t, "hcl")

	cmd := &InitCmd{Dir: dir, Format: "hcl"}
	err := cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDescriptorExists)

	cmd.Force = true
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)}))
}

func TestInitCmd_NoScaffold(t *testing.T) {
	dir := t.TempDir()

	cmd := &InitCmd{Dir: dir, Format: "json"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)}))

	assert.FileExists(t, filepath.Join(dir, "assetpack.json"))
	assert.NoFileExists(t, filepath.Join(dir, "src", "index.js"))
}

func TestValidateCmd_Run(t *testing.T) {
	_, path := initProject(t, "yaml")
	out := new(bytes.Buffer)

	cmd := &ValidateCmd{Config: path}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: out}))

	assert.Contains(t, out.String(), "ok")
	assert.Contains(t, out.String(), "sass-loader -> css-loader -> style-loader")
}

func TestValidateCmd_MissingEntry(t *testing.T) {
	dir, path := initProject(t, "yaml")
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "index.js")))

	cmd := &ValidateCmd{Config: path}
	err := cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)})
	require.Error(t, err)
	assert.ErrorIs(t, err, descriptor.ErrEntryNotFound)
	assert.Contains(t, err.Error(), "entry")
}

func TestPrintCmd_ConvertsFormat(t *testing.T) {
	dir, path := initProject(t, "yaml")
	out := new(bytes.Buffer)

	cmd := &PrintCmd{Config: path, Format: "hcl", Mode: "production"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: out}))

	assert.Contains(t, out.String(), `mode  = "production"`)
	assert.Contains(t, out.String(), "rule {")

	converted := filepath.Join(dir, "converted.hcl")
	require.NoError(t, os.WriteFile(converted, out.Bytes(), 0o600))
	d, err := descriptor.Load(converted)
	require.NoError(t, err)
	assert.Equal(t, descriptor.ModeProduction, d.Mode)
}

func TestBuildCmd_Run(t *testing.T) {
	dir, path := initProject(t, "yaml")
	stale := filepath.Join(dir, "dist", "stale.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	stub := &stubBundler{}
	out := new(bytes.Buffer)
	cmd := &BuildCmd{Config: path, Mode: "production", bundler: stub}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: out}))

	require.Len(t, stub.plans, 1)
	assert.Equal(t, descriptor.ModeProduction, stub.plans[0].Mode)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, "dist", "main.js"))
	assert.Contains(t, out.String(), "built")
}

func TestBuildCmd_InvalidDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assetpack.yaml")
	body := "entry: ./src/index.js\noutput:\n  filename: main.js\nmodule:\n  rules:\n    - test: \\.scss$\n      use: [style-loader, postcss-loader]\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.js"), nil, 0o600))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	stub := &stubBundler{}
	cmd := &BuildCmd{Config: path, bundler: stub}
	err := cmd.Run(context.Background(), &Globals{Stdout: new(bytes.Buffer)})
	require.Error(t, err)
	assert.ErrorIs(t, err, descriptor.ErrUnknownStep)
	assert.Contains(t, err.Error(), "module.rules[0].use[1]")
	assert.Empty(t, stub.plans)
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	d, err := descriptor.New(descriptor.Default(), descriptor.WithBaseDir(dir), descriptor.WithoutEntryCheck())
	require.NoError(t, err)

	res := &bundler.Result{
		Files:    []string{d.OutputFile()},
		Bytes:    42,
		Cleaned:  2,
		Warnings: []string{"src/style.scss:1:1: unused selector"},
		Metadata: &bundler.BuildMetadata{Outputs: map[string]bundler.OutputInfo{
			"dist/main.js":  {EntryPoint: "src/index.js", Imports: []bundler.ImportInfo{{Path: "dist/chunk.js"}}},
			"dist/chunk.js": {},
		}},
	}

	out := new(bytes.Buffer)
	report(out, d, res)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "1 files, 42 bytes, 2 cleaned, 1 warnings")
	assert.Equal(t, "warning: src/style.scss:1:1: unused selector", lines[1])
	assert.Equal(t, "  dist/main.js", lines[2])
	assert.Equal(t, "  dist/chunk.js", lines[3])
}

func TestWatchSet(t *testing.T) {
	dir := t.TempDir()
	d, err := descriptor.New(descriptor.Default(), descriptor.WithBaseDir(dir), descriptor.WithoutEntryCheck())
	require.NoError(t, err)

	config := filepath.Join(dir, "assetpack.yaml")
	set := newWatchSet(config, d)
	assert.Equal(t, []string{config, filepath.Join(dir, "src")}, set.paths)
	assert.Equal(t, []string{filepath.Join(dir, "dist")}, set.ignore)
	assert.True(t, set.equal(newWatchSet(config, d)))

	raw := descriptor.Default()
	raw.Entry = "./app/main.js"
	moved, err := descriptor.New(raw, descriptor.WithBaseDir(dir), descriptor.WithoutEntryCheck())
	require.NoError(t, err)
	assert.False(t, set.equal(newWatchSet(config, moved)))
}

// chanBundler reports each plan on a channel so watch rebuilds can be awaited.
type chanBundler struct {
	plans chan *bundler.Plan
}

func (c *chanBundler) Bundle(_ context.Context, plan *bundler.Plan) (*bundler.Result, error) {
	select {
	case c.plans <- plan:
	default:
	}
	return &bundler.Result{BuildID: plan.BuildID}, nil
}

func TestBuildCmd_WatchFollowsMovedEntry(t *testing.T) {
	dir, path := initProject(t, "yaml")
	appEntry := filepath.Join(dir, "app", "index.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(appEntry), 0o755))
	require.NoError(t, os.WriteFile(appEntry, []byte("console.log('app')\n"), 0o600))

	stub := &chanBundler{plans: make(chan *bundler.Plan, 64)}
	cmd := &BuildCmd{Config: path, Watch: true, Debounce: 20 * time.Millisecond, bundler: stub}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.Run(ctx, &Globals{Stdout: new(bytes.Buffer)}) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("timeout waiting for watch to stop")
		}
	})

	select {
	case initial := <-stub.plans:
		assert.Equal(t, filepath.Join(dir, "src", "index.js"), initial.Entry)
	case err := <-done:
		t.Fatalf("build exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial build")
	}

	raw, err := descriptor.Load(path)
	require.NoError(t, err)
	raw.Entry = "./app/index.js"

	// rewrite until the watcher has started and picked up the change
	var reloaded *bundler.Plan
	deadline := time.After(5 * time.Second)
	for reloaded == nil {
		require.NoError(t, descriptor.Save(raw, path))
		select {
		case plan := <-stub.plans:
			if plan.Entry == appEntry {
				reloaded = plan
			}
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("timeout waiting for descriptor reload")
		}
	}

	time.Sleep(200 * time.Millisecond)
	for len(stub.plans) > 0 {
		<-stub.plans
	}

	// app/ is only watched once the watcher restarts on the new entry directory
	deadline = time.After(5 * time.Second)
	for i := 0; ; i++ {
		require.NoError(t, os.WriteFile(appEntry, []byte{byte('a' + i%26)}, 0o600))
		select {
		case plan := <-stub.plans:
			assert.Equal(t, appEntry, plan.Entry)
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("timeout waiting for rebuild from the new entry directory")
		}
	}
}
