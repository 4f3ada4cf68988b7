package buildmodel

import (
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// AndroidModel is the android{} block of an Android module.
type AndroidModel struct {
	model *BuildModel
}

// Android returns the android{} model. It is valid when the block is
// absent; reads return unset properties and setters create the block.
func (m *BuildModel) Android() *AndroidModel { return &AndroidModel{model: m} }

func (a *AndroidModel) block() *dsl.Element  { return a.model.root().Block("android") }
func (a *AndroidModel) ensure() *dsl.Element { return ensureBlock(a.model.root(), "android") }

// Exists reports whether the build file declares android{}.
func (a *AndroidModel) Exists() bool { return a.block() != nil }

// CompileSdkVersion reads compileSdkVersion or compileSdk.
func (a *AndroidModel) CompileSdkVersion() Property {
	return readProperty(a.block(), "compileSdkVersion", "compileSdk")
}

// SetCompileSdkVersion sets the compile SDK level.
func (a *AndroidModel) SetCompileSdkVersion(level int) {
	a.model.setProperty(a.ensure(), dsl.IntValue(level), "compileSdkVersion", "compileSdk")
}

// BuildToolsVersion reads buildToolsVersion.
func (a *AndroidModel) BuildToolsVersion() Property {
	return readProperty(a.block(), "buildToolsVersion")
}

// SetBuildToolsVersion sets buildToolsVersion.
func (a *AndroidModel) SetBuildToolsVersion(v string) {
	a.model.setProperty(a.ensure(), dsl.StringValue(v), "buildToolsVersion")
}

// Namespace reads namespace.
func (a *AndroidModel) Namespace() Property {
	return readProperty(a.block(), "namespace")
}

// SetNamespace sets namespace.
func (a *AndroidModel) SetNamespace(ns string) {
	a.model.setProperty(a.ensure(), dsl.StringValue(ns), "namespace")
}

// DefaultConfig returns the defaultConfig{} flavor.
func (a *AndroidModel) DefaultConfig() *ProductFlavorModel {
	return &ProductFlavorModel{
		model: a.model,
		name:  "defaultConfig",
		block: func() *dsl.Element {
			if b := a.block(); b != nil {
				return b.Block("defaultConfig")
			}
			return nil
		},
		ensure: func() *dsl.Element { return ensureBlock(a.ensure(), "defaultConfig") },
	}
}

// FlavorDimensions returns the declared flavor dimensions.
func (a *AndroidModel) FlavorDimensions() []Property {
	b := a.block()
	if b == nil {
		return nil
	}
	var out []Property
	for _, e := range b.PropertyElements("flavorDimensions") {
		out = append(out, listProperties(e)...)
	}
	return out
}

// AddFlavorDimension appends a flavor dimension.
func (a *AndroidModel) AddFlavorDimension(name string) {
	for _, p := range a.FlavorDimensions() {
		if p.Value == name {
			return
		}
	}
	a.ensure().AddToNewLiteralList("flavorDimensions", dsl.StringValue(name))
}

// BuildTypes returns the entries of buildTypes{} in order.
func (a *AndroidModel) BuildTypes() []*BuildTypeModel {
	var out []*BuildTypeModel
	for _, e := range a.containerEntries("buildTypes") {
		out = append(out, &BuildTypeModel{model: a.model, elem: e, name: containerEntryName(e)})
	}
	return out
}

// BuildType returns the build type called name, or nil.
func (a *AndroidModel) BuildType(name string) *BuildTypeModel {
	var found *BuildTypeModel
	for _, bt := range a.BuildTypes() {
		if bt.name == name {
			found = bt
		}
	}
	return found
}

// AddBuildType returns the build type called name, declaring it when
// absent.
func (a *AndroidModel) AddBuildType(name string) *BuildTypeModel {
	if bt := a.BuildType(name); bt != nil && !bt.elem.IsReadOnly() {
		return bt
	}
	return &BuildTypeModel{model: a.model, elem: a.addContainerEntry("buildTypes", name), name: name}
}

// ProductFlavors returns the entries of productFlavors{} in order.
func (a *AndroidModel) ProductFlavors() []*ProductFlavorModel {
	var out []*ProductFlavorModel
	for _, e := range a.containerEntries("productFlavors") {
		out = append(out, flavorOf(a.model, e))
	}
	return out
}

// ProductFlavor returns the product flavor called name, or nil.
func (a *AndroidModel) ProductFlavor(name string) *ProductFlavorModel {
	var found *ProductFlavorModel
	for _, pf := range a.ProductFlavors() {
		if pf.name == name {
			found = pf
		}
	}
	return found
}

// AddProductFlavor returns the product flavor called name, declaring it
// when absent.
func (a *AndroidModel) AddProductFlavor(name string) *ProductFlavorModel {
	if pf := a.ProductFlavor(name); pf != nil && !pf.block().IsReadOnly() {
		return pf
	}
	return flavorOf(a.model, a.addContainerEntry("productFlavors", name))
}

// SigningConfigs returns the entries of signingConfigs{} in order.
func (a *AndroidModel) SigningConfigs() []*SigningConfigModel {
	var out []*SigningConfigModel
	for _, e := range a.containerEntries("signingConfigs") {
		out = append(out, &SigningConfigModel{model: a.model, elem: e, name: containerEntryName(e)})
	}
	return out
}

// SigningConfig returns the signing config called name, or nil.
func (a *AndroidModel) SigningConfig(name string) *SigningConfigModel {
	var found *SigningConfigModel
	for _, sc := range a.SigningConfigs() {
		if sc.name == name {
			found = sc
		}
	}
	return found
}

// AddSigningConfig returns the signing config called name, declaring it
// when absent.
func (a *AndroidModel) AddSigningConfig(name string) *SigningConfigModel {
	if sc := a.SigningConfig(name); sc != nil && !sc.elem.IsReadOnly() {
		return sc
	}
	return &SigningConfigModel{model: a.model, elem: a.addContainerEntry("signingConfigs", name), name: name}
}

// containerEntries returns the named entries of a container block such
// as buildTypes{} in declaration order.
func (a *AndroidModel) containerEntries(container string) []*dsl.Element {
	b := a.block()
	if b == nil {
		return nil
	}
	var out []*dsl.Element
	for _, c := range b.Blocks(container) {
		for _, ch := range c.Children() {
			if ch.Kind == dsl.KindBlock && containerEntryName(ch) != "" {
				out = append(out, ch)
			}
		}
	}
	return out
}

// addContainerEntry declares `name { }` in Groovy or `create("name") { }`
// in Kotlin inside the container block.
func (a *AndroidModel) addContainerEntry(container, name string) *dsl.Element {
	var blk *dsl.Element
	if a.model.file.Language == lang.Kotlin {
		blk = dsl.NewBlock("create")
		blk.Args = []*dsl.Element{dsl.NewLiteral("", dsl.StringValue(name))}
		blk.Args[0].Syntax = dsl.SyntaxArgument
	} else {
		blk = dsl.NewBlock(name)
	}
	return ensureBlock(a.ensure(), container).SetNewElement(blk)
}

// containerEntryName returns the entry name of `release { }`,
// `getByName("release") { }` or `create("staging") { }`.
func containerEntryName(e *dsl.Element) string {
	switch e.Name {
	case "getByName", "create", "maybeCreate", "named", "register":
		if len(e.Args) == 1 && e.Args[0].Kind == dsl.KindLiteral {
			return valueText(e.Args[0])
		}
		return ""
	}
	return e.Name
}

// ProductFlavorModel is defaultConfig{} or a product flavor.
type ProductFlavorModel struct {
	model  *BuildModel
	name   string
	block  func() *dsl.Element
	ensure func() *dsl.Element
}

func flavorOf(m *BuildModel, e *dsl.Element) *ProductFlavorModel {
	get := func() *dsl.Element { return e }
	return &ProductFlavorModel{model: m, name: containerEntryName(e), block: get, ensure: get}
}

// Name returns the flavor name, "defaultConfig" for the default flavor.
func (p *ProductFlavorModel) Name() string { return p.name }

// Dimension reads the flavor dimension.
func (p *ProductFlavorModel) Dimension() Property {
	return readProperty(p.block(), "dimension")
}

// SetDimension sets the flavor dimension.
func (p *ProductFlavorModel) SetDimension(d string) {
	p.model.setProperty(p.ensure(), dsl.StringValue(d), "dimension")
}

// ApplicationID reads applicationId.
func (p *ProductFlavorModel) ApplicationID() Property {
	return readProperty(p.block(), "applicationId")
}

// SetApplicationID sets applicationId.
func (p *ProductFlavorModel) SetApplicationID(id string) {
	p.model.setProperty(p.ensure(), dsl.StringValue(id), "applicationId")
}

// MinSdkVersion reads minSdkVersion or minSdk.
func (p *ProductFlavorModel) MinSdkVersion() Property {
	return readProperty(p.block(), "minSdkVersion", "minSdk")
}

// SetMinSdkVersion sets the minimum SDK level.
func (p *ProductFlavorModel) SetMinSdkVersion(level int) {
	p.model.setProperty(p.ensure(), dsl.IntValue(level), "minSdkVersion", "minSdk")
}

// TargetSdkVersion reads targetSdkVersion or targetSdk.
func (p *ProductFlavorModel) TargetSdkVersion() Property {
	return readProperty(p.block(), "targetSdkVersion", "targetSdk")
}

// SetTargetSdkVersion sets the target SDK level.
func (p *ProductFlavorModel) SetTargetSdkVersion(level int) {
	p.model.setProperty(p.ensure(), dsl.IntValue(level), "targetSdkVersion", "targetSdk")
}

// VersionCode reads versionCode.
func (p *ProductFlavorModel) VersionCode() Property {
	return readProperty(p.block(), "versionCode")
}

// SetVersionCode sets versionCode.
func (p *ProductFlavorModel) SetVersionCode(code int) {
	p.model.setProperty(p.ensure(), dsl.IntValue(code), "versionCode")
}

// VersionName reads versionName.
func (p *ProductFlavorModel) VersionName() Property {
	return readProperty(p.block(), "versionName")
}

// SetVersionName sets versionName.
func (p *ProductFlavorModel) SetVersionName(name string) {
	p.model.setProperty(p.ensure(), dsl.StringValue(name), "versionName")
}

// BuildTypeModel is one entry of buildTypes{}.
type BuildTypeModel struct {
	model *BuildModel
	elem  *dsl.Element
	name  string
}

// Name returns the build type name.
func (b *BuildTypeModel) Name() string { return b.name }

// Element returns the backing block.
func (b *BuildTypeModel) Element() *dsl.Element { return b.elem }

// MinifyEnabled reads minifyEnabled or isMinifyEnabled.
func (b *BuildTypeModel) MinifyEnabled() Property {
	return readProperty(b.elem, "minifyEnabled", "isMinifyEnabled")
}

// SetMinifyEnabled sets minifyEnabled.
func (b *BuildTypeModel) SetMinifyEnabled(on bool) {
	b.model.setProperty(b.elem, dsl.BoolValue(on), "minifyEnabled", "isMinifyEnabled")
}

// SigningConfig returns the name of the signing config the build type
// uses: `signingConfig signingConfigs.release` or
// `signingConfig = signingConfigs.getByName("release")`.
func (b *BuildTypeModel) SigningConfig() Property {
	e := lastProperty(b.elem, "signingConfig")
	if e == nil {
		return Property{}
	}
	if e.Kind == dsl.KindLiteral && e.Value.Type == dsl.ValueReference {
		if name, ok := strings.CutPrefix(e.Value.Text, "signingConfigs."); ok {
			return Property{Value: name, Element: e}
		}
	}
	if args := e.Children(); e.Kind == dsl.KindMethodCall && len(args) == 1 && strings.HasPrefix(args[0].Name, "signingConfigs.") {
		if lit := args[0].SingleValue(); lit != nil {
			return Property{Value: valueText(lit), Element: e}
		}
	}
	return Property{Element: e, Unresolved: true}
}

// SetSigningConfig points the build type at the signing config name.
func (b *BuildTypeModel) SetSigningConfig(name string) {
	if e := lastProperty(b.elem, "signingConfig"); e != nil && !e.IsReadOnly() {
		e.Remove()
	}
	var e *dsl.Element
	if b.model.file.Language == lang.Kotlin {
		e = dsl.NewMethodCall("signingConfig", dsl.NewMethodCall("signingConfigs.getByName", dsl.NewLiteral("", dsl.StringValue(name))))
		e.Syntax = dsl.SyntaxAssignment
	} else {
		ref := "signingConfigs." + name
		e = dsl.NewLiteral("signingConfig", dsl.Value{Type: dsl.ValueReference, Raw: ref, Text: ref})
	}
	b.elem.SetNewElement(e)
}

// ProguardFiles returns the proguardFiles arguments. The file named by
// getDefaultProguardFile(x) is reported as x.
func (b *BuildTypeModel) ProguardFiles() []Property {
	var out []Property
	for _, name := range []string{"proguardFiles", "proguardFile"} {
		for _, e := range b.elem.PropertyElements(name) {
			out = append(out, listProperties(e)...)
		}
	}
	return out
}

// AddProguardFile appends a file to proguardFiles.
func (b *BuildTypeModel) AddProguardFile(name string) {
	for _, p := range b.ProguardFiles() {
		if p.Value == name {
			return
		}
	}
	if old := b.elem.PropertyElement("proguardFiles"); old != nil && !old.IsReadOnly() && old.Kind == dsl.KindMethodCall {
		old.SetNewElement(dsl.NewLiteral("", dsl.StringValue(name)))
		return
	}
	call := dsl.NewMethodCall("proguardFiles", dsl.NewLiteral("", dsl.StringValue(name)))
	if b.model.file.Language != lang.Kotlin {
		call.Syntax = dsl.SyntaxApplication
	}
	b.elem.SetNewElement(call)
}

// readProperty reads the last of names declared in blk. A nil blk yields
// an unset property.
func readProperty(blk *dsl.Element, names ...string) Property {
	return propertyOf(lastProperty(blk, names...))
}

// lastProperty returns the last statement of blk called one of names.
func lastProperty(blk *dsl.Element, names ...string) *dsl.Element {
	if blk == nil {
		return nil
	}
	var found *dsl.Element
	for _, ch := range blk.Children() {
		if ch.Variable {
			continue
		}
		for _, n := range names {
			if ch.Name == n {
				found = ch
			}
		}
	}
	return found
}

// setProperty updates the last writable property of names in blk in
// place, or adds one. Groovy files get the first name in `name value`
// form; Kotlin files get the last name as an assignment.
func (m *BuildModel) setProperty(blk *dsl.Element, v dsl.Value, names ...string) *dsl.Element {
	if p := readProperty(blk, names...); p.Element != nil && !p.Element.IsReadOnly() {
		if lit := p.Element.SingleValue(); lit != nil {
			lit.SetValue(v)
			return lit
		}
		p.Element.Remove()
	}
	var e *dsl.Element
	if m.file.Language == lang.Kotlin {
		e = dsl.NewLiteral(names[len(names)-1], v)
		e.Syntax = dsl.SyntaxAssignment
	} else {
		e = dsl.NewLiteral(names[0], v)
		e.Syntax = dsl.SyntaxApplication
	}
	return blk.SetNewElement(e)
}

// setFile sets a file property: `name 'path'` in Groovy and
// `name = file("path")` in Kotlin. An existing value is updated in place.
func (m *BuildModel) setFile(blk *dsl.Element, name, path string) {
	if e := lastProperty(blk, name); e != nil && !e.IsReadOnly() {
		lit := e.SingleValue()
		if args := e.Children(); lit == nil && e.Kind == dsl.KindMethodCall && len(args) == 1 {
			lit = args[0].SingleValue()
		}
		if lit != nil {
			lit.SetValue(dsl.StringValue(path))
			return
		}
		e.Remove()
	}
	if m.file.Language == lang.Kotlin {
		e := dsl.NewMethodCall(name, dsl.NewMethodCall("file", dsl.NewLiteral("", dsl.StringValue(path))))
		e.Syntax = dsl.SyntaxAssignment
		blk.SetNewElement(e)
		return
	}
	blk.SetNewElement(dsl.NewLiteral(name, dsl.StringValue(path)))
}

// SigningConfigModel is one entry of signingConfigs{}.
type SigningConfigModel struct {
	model *BuildModel
	elem  *dsl.Element
	name  string
}

// Name returns the signing config name.
func (s *SigningConfigModel) Name() string { return s.name }

// Element returns the backing block.
func (s *SigningConfigModel) Element() *dsl.Element { return s.elem }

// StoreFile reads storeFile, unwrapping file(...).
func (s *SigningConfigModel) StoreFile() Property {
	if e := lastProperty(s.elem, "storeFile"); e != nil {
		return callProperty(e)
	}
	return Property{}
}

// SetStoreFile sets storeFile.
func (s *SigningConfigModel) SetStoreFile(path string) { s.model.setFile(s.elem, "storeFile", path) }

// StorePassword reads storePassword.
func (s *SigningConfigModel) StorePassword() Property { return readProperty(s.elem, "storePassword") }

// SetStorePassword sets storePassword.
func (s *SigningConfigModel) SetStorePassword(v string) {
	s.model.setProperty(s.elem, dsl.StringValue(v), "storePassword")
}

// StoreType reads storeType.
func (s *SigningConfigModel) StoreType() Property { return readProperty(s.elem, "storeType") }

// SetStoreType sets storeType.
func (s *SigningConfigModel) SetStoreType(v string) {
	s.model.setProperty(s.elem, dsl.StringValue(v), "storeType")
}

// KeyAlias reads keyAlias.
func (s *SigningConfigModel) KeyAlias() Property { return readProperty(s.elem, "keyAlias") }

// SetKeyAlias sets keyAlias.
func (s *SigningConfigModel) SetKeyAlias(v string) {
	s.model.setProperty(s.elem, dsl.StringValue(v), "keyAlias")
}

// KeyPassword reads keyPassword.
func (s *SigningConfigModel) KeyPassword() Property { return readProperty(s.elem, "keyPassword") }

// SetKeyPassword sets keyPassword.
func (s *SigningConfigModel) SetKeyPassword(v string) {
	s.model.setProperty(s.elem, dsl.StringValue(v), "keyPassword")
}

// ExternalNativeBuildModel is android.externalNativeBuild{}.
type ExternalNativeBuildModel struct {
	android *AndroidModel
}

// ExternalNativeBuild returns the externalNativeBuild{} model.
func (a *AndroidModel) ExternalNativeBuild() *ExternalNativeBuildModel {
	return &ExternalNativeBuildModel{android: a}
}

// CMake returns the cmake{} tool block.
func (x *ExternalNativeBuildModel) CMake() *NativeBuildModel { return x.tool("cmake") }

// NdkBuild returns the ndkBuild{} tool block.
func (x *ExternalNativeBuildModel) NdkBuild() *NativeBuildModel { return x.tool("ndkBuild") }

func (x *ExternalNativeBuildModel) tool(name string) *NativeBuildModel {
	a := x.android
	return &NativeBuildModel{
		model: a.model,
		block: func() *dsl.Element {
			if b := a.block(); b != nil {
				if enb := b.Block("externalNativeBuild"); enb != nil {
					return enb.Block(name)
				}
			}
			return nil
		},
		ensure: func() *dsl.Element {
			return ensureBlock(ensureBlock(a.ensure(), "externalNativeBuild"), name)
		},
	}
}

// NativeBuildModel is the cmake{} or ndkBuild{} block of
// externalNativeBuild{}.
type NativeBuildModel struct {
	model  *BuildModel
	block  func() *dsl.Element
	ensure func() *dsl.Element
}

// Path reads the build script path, unwrapping file(...).
func (n *NativeBuildModel) Path() Property {
	if e := lastProperty(n.block(), "path"); e != nil {
		return callProperty(e)
	}
	return Property{}
}

// SetPath sets the build script path.
func (n *NativeBuildModel) SetPath(path string) { n.model.setFile(n.ensure(), "path", path) }

// RemovePath removes every writable path statement.
func (n *NativeBuildModel) RemovePath() {
	if b := n.block(); b != nil {
		b.RemoveProperty("path")
	}
}

// Version reads the tool version.
func (n *NativeBuildModel) Version() Property { return readProperty(n.block(), "version") }

// SetVersion sets the tool version.
func (n *NativeBuildModel) SetVersion(v string) {
	n.model.setProperty(n.ensure(), dsl.StringValue(v), "version")
}
