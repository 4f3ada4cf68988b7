package buildmodel

import "github.com/DeusData/gradle-model-mcp/internal/dsl"

// BuildscriptModel is the buildscript{} block.
type BuildscriptModel struct {
	model *BuildModel
}

// Buildscript returns the buildscript{} model. Reads on a file without the
// block are empty; additions create it as the first statement.
func (m *BuildModel) Buildscript() *BuildscriptModel { return &BuildscriptModel{model: m} }

func (b *BuildscriptModel) block() *dsl.Element {
	return b.model.root().Block("buildscript")
}

func (b *BuildscriptModel) ensure() *dsl.Element {
	if blk := b.block(); blk != nil && !blk.IsReadOnly() {
		return blk
	}
	return b.model.root().AddNewElementAt(0, dsl.NewBlock("buildscript"))
}

// Exists reports whether the build file declares buildscript{}.
func (b *BuildscriptModel) Exists() bool { return b.block() != nil }

// Repositories returns the buildscript repositories.
func (b *BuildscriptModel) Repositories() *RepositoriesModel {
	return &RepositoriesModel{model: b.model, parent: b.block, writable: b.ensure}
}

// Dependencies returns the buildscript dependencies, usually classpath
// entries.
func (b *BuildscriptModel) Dependencies() *DependenciesModel {
	return &DependenciesModel{model: b.model, parent: b.block, writable: b.ensure}
}

// Ext returns the ext{} properties declared inside buildscript{}.
func (b *BuildscriptModel) Ext() []ExtProperty {
	blk := b.block()
	if blk == nil {
		return nil
	}
	var out []ExtProperty
	for _, e := range blk.Blocks("ext") {
		for _, p := range e.Properties() {
			out = append(out, ExtProperty{Name: p.Name, Property: propertyOf(p)})
		}
	}
	return out
}
