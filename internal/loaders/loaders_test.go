package loaders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/descriptor"
)

// recordingStep appends its id to a shared log and to the asset contents.
type recordingStep struct {
	info  descriptor.StepInfo
	calls *[]string
	err   error
}

func (s *recordingStep) Info() descriptor.StepInfo { return s.info }

func (s *recordingStep) Transform(_ context.Context, asset *Asset) error {
	*s.calls = append(*s.calls, s.info.ID)
	if s.err != nil {
		return s.err
	}
	asset.Contents = append(asset.Contents, []byte("|"+s.info.ID)...)
	return nil
}

func recordingBuiltins(calls *[]string) []Step {
	var steps []Step
	for _, id := range []string{descriptor.StepSass, descriptor.StepCSS, descriptor.StepStyle} {
		info, _ := descriptor.Builtin.Lookup(id)
		steps = append(steps, &recordingStep{info: info, calls: calls})
	}
	return steps
}

func TestRegistry_ResolveExecutionOrder(t *testing.T) {
	var calls []string
	reg := NewRegistry(recordingBuiltins(&calls)...)

	rule := descriptor.Default().Module.Rules[0]
	steps, err := reg.Resolve(rule)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	asset := NewAsset("/app/src/style.scss", []byte("src"))
	require.NoError(t, Apply(context.Background(), steps, asset))

	assert.Equal(t, []string{descriptor.StepSass, descriptor.StepCSS, descriptor.StepStyle}, calls)
	assert.Equal(t, "src|sass-loader|css-loader|style-loader", string(asset.Contents))
	assert.Equal(t, descriptor.KindJS, asset.Kind)

	var stages []descriptor.Stage
	for _, s := range steps {
		stages = append(stages, s.Info().Stage)
	}
	assert.Equal(t, []descriptor.Stage{descriptor.StageCompile, descriptor.StageResolve, descriptor.StageInject}, stages)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve(descriptor.Rule{Test: `\.css$`, Use: []string{"css-loader"}})
	assert.ErrorIs(t, err, descriptor.ErrUnknownStep)

	_, ok := reg.Lookup("css-loader")
	assert.False(t, ok)
}

func TestRegistry_IsCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.js"), nil, 0o600))

	var calls []string
	reg := NewRegistry(recordingBuiltins(&calls)[1:]...)

	_, err := descriptor.New(descriptor.Default(), descriptor.WithBaseDir(dir), descriptor.WithCatalog(reg))
	require.Error(t, err)
	assert.ErrorIs(t, err, descriptor.ErrUnknownStep)
	assert.Contains(t, err.Error(), "module.rules[0].use[2]")
}

func TestApply_StopsOnError(t *testing.T) {
	var calls []string
	steps := recordingBuiltins(&calls)
	boom := errors.New("boom")
	steps[1].(*recordingStep).err = boom

	asset := NewAsset("/app/src/style.scss", []byte("src"))
	err := Apply(context.Background(), steps, asset)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "css-loader failed on /app/src/style.scss")
	assert.Equal(t, []string{descriptor.StepSass, descriptor.StepCSS}, calls)
	assert.Equal(t, descriptor.KindCSS, asset.Kind)
}

func TestApply_Cancelled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Apply(ctx, recordingBuiltins(&calls), NewAsset("a.scss", nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestKindFromPath(t *testing.T) {
	assert.Equal(t, descriptor.KindSass, KindFromPath("a.scss"))
	assert.Equal(t, descriptor.KindSass, KindFromPath("a.SASS"))
	assert.Equal(t, descriptor.KindCSS, KindFromPath("a.css"))
	assert.Equal(t, descriptor.KindJS, KindFromPath("a.js"))
}

func TestNewAsset_NameIsBaseName(t *testing.T) {
	asset := NewAsset("/build/host/src/theme.scss", nil)
	assert.Equal(t, "theme.scss", asset.Name)
	assert.Equal(t, descriptor.KindSass, asset.Kind)
}

func TestStyle_Transform(t *testing.T) {
	asset := &Asset{Path: "/app/src/style.scss", Name: "src/style.scss", Kind: descriptor.KindCSS, Contents: []byte("body{color:red}</style>")}

	require.NoError(t, NewStyle().Transform(context.Background(), asset))

	js := string(asset.Contents)
	assert.Contains(t, js, `var css = "body{color:red}\u003c/style\u003e";`)
	assert.NotContains(t, js, "</style>")
	assert.Contains(t, js, `style.setAttribute("data-assetpack", "src/style.scss");`)
	assert.NotContains(t, js, "/app/")
	assert.Contains(t, js, "document.head.appendChild(style);")
	assert.Contains(t, js, "export default css;")
}

func TestCSS_ResolvesImports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.css"), []byte(".base { margin: 0; }\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dot.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0o600))

	path := filepath.Join(dir, "style.css")
	asset := &Asset{
		Path:     path,
		Kind:     descriptor.KindCSS,
		Contents: []byte("@import \"./base.css\";\n.app { background: url(./dot.svg); }\n"),
	}

	require.NoError(t, NewCSS(CSSOptions{}).Transform(context.Background(), asset))

	css := string(asset.Contents)
	assert.Contains(t, css, ".base")
	assert.Contains(t, css, ".app")
	assert.Contains(t, css, "data:image/svg+xml")
	assert.NotContains(t, css, "@import")
}

func TestCSS_Minify(t *testing.T) {
	asset := &Asset{
		Path:     filepath.Join(t.TempDir(), "style.css"),
		Contents: []byte(".app {\n  color: red;\n}\n"),
	}

	require.NoError(t, NewCSS(CSSOptions{Minify: true}).Transform(context.Background(), asset))
	assert.Equal(t, ".app{color:red}", strings.TrimSpace(string(asset.Contents)))
}

func TestCSS_MissingImport(t *testing.T) {
	asset := &Asset{
		Path:     filepath.Join(t.TempDir(), "style.css"),
		Contents: []byte("@import \"./missing.css\";\n"),
	}

	err := NewCSS(CSSOptions{}).Transform(context.Background(), asset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.css")
}

type fakeTranspiler struct {
	args   []godartsass.Args
	css    string
	err    error
	closed bool
}

func (f *fakeTranspiler) Execute(args godartsass.Args) (godartsass.Result, error) {
	f.args = append(f.args, args)
	return godartsass.Result{CSS: f.css}, f.err
}

func (f *fakeTranspiler) Close() error {
	f.closed = true
	return nil
}

func newFakeSass(opts SassOptions, tr *fakeTranspiler, starts *int) *Sass {
	s := NewSass(opts)
	s.start = func(godartsass.Options) (transpiler, error) {
		*starts++
		return tr, nil
	}
	return s
}

func TestSass_Transform(t *testing.T) {
	tr := &fakeTranspiler{css: ".a .b{color:red}"}
	starts := 0
	s := newFakeSass(SassOptions{Minify: true, IncludePaths: []string{"/vendor"}}, tr, &starts)

	asset := NewAsset("/app/src/style.scss", []byte(".a { .b { color: red } }"))
	require.NoError(t, s.Transform(context.Background(), asset))
	require.NoError(t, s.Transform(context.Background(), NewAsset("/app/src/legacy.sass", []byte(".a\n  color: red"))))

	assert.Equal(t, 1, starts)
	assert.Equal(t, ".a .b{color:red}", string(asset.Contents))

	require.Len(t, tr.args, 2)
	assert.Equal(t, godartsass.OutputStyleCompressed, tr.args[0].OutputStyle)
	assert.Equal(t, godartsass.SourceSyntaxSCSS, tr.args[0].SourceSyntax)
	assert.Equal(t, godartsass.SourceSyntaxSASS, tr.args[1].SourceSyntax)
	assert.Equal(t, "file:///app/src/style.scss", tr.args[0].URL)
	assert.Equal(t, []string{"/app/src", "/vendor"}, tr.args[0].IncludePaths)

	require.NoError(t, s.Close())
	assert.True(t, tr.closed)
}

func TestSass_CompileError(t *testing.T) {
	tr := &fakeTranspiler{err: errors.New("expected \"}\"")}
	starts := 0
	s := newFakeSass(SassOptions{}, tr, &starts)

	err := s.Transform(context.Background(), NewAsset("/app/src/style.scss", []byte(".a {")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile sass")
}

func TestSass_Unavailable(t *testing.T) {
	s := NewSass(SassOptions{})
	s.start = func(godartsass.Options) (transpiler, error) {
		return nil, errors.New("exec: \"sass\": executable file not found in $PATH")
	}

	err := s.Transform(context.Background(), NewAsset("/app/src/style.scss", nil))
	assert.ErrorIs(t, err, ErrSassUnavailable)
	assert.NoError(t, s.Close())
}

func TestBuiltin(t *testing.T) {
	reg := Builtin(BuiltinOptions{Mode: descriptor.ModeProduction})

	for _, id := range []string{descriptor.StepSass, descriptor.StepCSS, descriptor.StepStyle} {
		info, ok := reg.Lookup(id)
		require.True(t, ok, id)
		assert.Equal(t, id, info.ID)
	}
	assert.NoError(t, reg.Close())
}
