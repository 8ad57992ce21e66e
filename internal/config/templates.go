package config

// GlobalConfigTemplate is the default template for ~/.config/conform/config.yaml.
// It includes comments explaining each option.
const GlobalConfigTemplate = `# conform global configuration
# Location: ~/.config/conform/config.yaml

# Schema version (required)
version: 1

# Colored diagnostics: auto (only on a terminal), on, or off
color: auto

# Run history database
history:
  disabled: false
  # Defaults to $XDG_DATA_HOME/conform/history.db
  # path: ~/.local/share/conform/history.db

# Verdict cache, keyed on fixture and compiler contents
cache:
  enabled: false
  # Defaults to $XDG_CACHE_HOME/conform
  # dir: ~/.cache/conform
`

// ProjectConfigTemplate is the default template for .conform.yaml.
// It includes commented examples for all configuration options.
const ProjectConfigTemplate = `# conform project configuration
# Location: .conform.yaml (next to the test_<stage> directories)

# Schema version (required)
version: 1

# Compiler under test. A bare name is looked up on $PATH; anything
# with a slash is resolved relative to this file.
compiler: ./cminor

# Directory holding test_lex, test_parse, test_typecheck and test_compile
fixture_root: .

# Fixture extension and the names derived from each fixture path
fixture_ext: .cminor
artifact_suffix: .s
executable_suffix: .out

# Runtime support object linked into every compile-stage executable,
# relative to fixture_root
support_object: library.o

# Native toolchain used to assemble and link generated code: cc, gcc or clang
linker:
  type: cc
  # path: /usr/bin/cc

# Per-invocation limit; a fixture that exceeds it is a mismatch. 0 disables.
timeout: 30s

# Fixtures evaluated concurrently. -1 uses every CPU.
jobs: 1

# Failure fixtures in the compile stage: skip, or reject-codegen to
# require the compiler to refuse them
compile_failure_policy: skip
`

// ProjectConfigMinimalTemplate is a minimal template without comments.
const ProjectConfigMinimalTemplate = `version: 1
compiler: ./cminor
`
