package descriptor

// Kind is the representation an asset is in between transform steps.
type Kind string

const (
	KindSass Kind = "sass"
	KindCSS  Kind = "css"
	KindJS   Kind = "js"
)

// Stage names the job a step performs in a stylesheet chain.
type Stage string

const (
	StageCompile Stage = "compile"
	StageResolve Stage = "resolve"
	StageInject  Stage = "inject"
)

// Built-in step identifiers.
const (
	StepSass  = "sass-loader"
	StepCSS   = "css-loader"
	StepStyle = "style-loader"
)

// StepInfo describes a transform step without carrying its implementation.
type StepInfo struct {
	ID       string
	Stage    Stage
	Consumes Kind
	Produces Kind
}

// Catalog is the set of step identifiers a descriptor may reference.
type Catalog interface {
	Lookup(id string) (StepInfo, bool)
}

// StaticCatalog is a Catalog backed by a map keyed on step identifier.
type StaticCatalog map[string]StepInfo

func (c StaticCatalog) Lookup(id string) (StepInfo, bool) {
	info, ok := c[id]
	return info, ok
}

// Builtin is the catalog of steps shipped with assetpack.
var Builtin = StaticCatalog{
	StepSass:  {ID: StepSass, Stage: StageCompile, Consumes: KindSass, Produces: KindCSS},
	StepCSS:   {ID: StepCSS, Stage: StageResolve, Consumes: KindCSS, Produces: KindCSS},
	StepStyle: {ID: StepStyle, Stage: StageInject, Consumes: KindCSS, Produces: KindJS},
}
