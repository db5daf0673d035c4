package constants

const (
	AppSlug = "dotbot-if"

	DirectiveIf       = "if"
	DirectiveDefaults = "defaults"
	DirectiveClean    = "clean"
	DirectiveCreate   = "create"
	DirectiveLink     = "link"
	DirectiveShell    = "shell"

	// ShellBuiltin selects the in-process interpreter instead of an executable.
	ShellBuiltin = "builtin"
	DefaultShell = "bash"
	// DefaultPluginShell is used by manifest exec handlers that don't name a shell.
	DefaultPluginShell = "sh"

	SourceBuiltIn  = "built-in"
	SourceCompiled = "compiled-in"

	EnvDirective     = "DOTBOT_DIRECTIVE"
	EnvBaseDirectory = "DOTBOT_BASE_DIRECTORY"
	EnvPluginDir     = "DOTBOT_PLUGIN_DIR"
)

var (
	// BuiltInDirectives is the order built-in plugins are appended in.
	BuiltInDirectives = []string{DirectiveClean, DirectiveCreate, DirectiveLink, DirectiveShell}

	// PluginManifestPattern matches plugin manifests inside a plugin directory.
	PluginManifestPattern = "*.{yaml,yml}"
)
