package config

// DefaultExcludes is the default exclude-pattern set (§6.7): dependency
// directories, build outputs, coverage artifacts, declaration-only files,
// and test infrastructure files, expressed as doublestar globs. Callers may
// override via Config.Exclude.
func DefaultExcludes() []string {
	return []string{
		"**/.*/**",
		"**/vendor/**",
		"**/node_modules/**",
		"**/.git/**",
		"**/bin/**",
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",

		// coverage artifacts
		"**/*.cover.out",
		"**/coverage/**",
		"**/*.coverprofile",

		// declaration-only files: nothing to extract a body from
		"**/*.pb.go",
		"**/*_generated.go",
		"**/*.gen.go",

		// test infrastructure, not source under extraction
		"**/testdata/**",
		"**/*_test.go",
		"**/mocks/**",
	}
}

// EffectiveExcludes returns the configured override set when non-empty,
// else DefaultExcludes().
func (c *Config) EffectiveExcludes() []string {
	if len(c.Exclude) > 0 {
		return c.Exclude
	}
	return DefaultExcludes()
}
