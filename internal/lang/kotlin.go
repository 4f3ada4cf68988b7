package lang

func init() {
	Register(&LanguageSpec{
		Language:          Kotlin,
		FileSuffixes:      []string{".gradle.kts"},
		BuildFileName:     FnBuildGradleKts,
		SettingsFileName:  FnSettingsGradleKts,
		StringQuote:       '"',
		VariableKeyword:   "val",
		NamedArgSeparator: " =",
		CommandSyntax:     false,
		ModuleNodeTypes:   []string{"source_file"},
		CallNodeTypes: []string{
			"call_expression",
			"navigation_expression",
		},
	})
}
