package lang

func init() {
	Register(&LanguageSpec{
		Language:          Groovy,
		FileSuffixes:      []string{".gradle"},
		BuildFileName:     FnBuildGradle,
		SettingsFileName:  FnSettingsGradle,
		StringQuote:       '\'',
		VariableKeyword:   "def",
		NamedArgSeparator: ":",
		CommandSyntax:     true,
		ModuleNodeTypes:   []string{"source_file"},
		CallNodeTypes:     []string{"function_call", "juxt_function_call"},
	})
}
