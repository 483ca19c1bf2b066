package config

var defaults Config

// Default returns a copy of the default configuration.
func Default() *Config {
	c := defaults
	return &c
}

func init() {
	yaml := []byte(`version: v1

editor:
  # Quiet period after typing before the view reports its content.
  debounce: 300ms
  # Soft line breaks inside paragraphs are shown as line breaks.
  hardWraps: true
  tables: true
  strikethrough: true

log:
  enabled: false
  path: ""
  verbose: false

backup:
  dir: .mdedit/backups
  # Zero disables periodic backups.
  interval: 30s

remote:
  baseURL: https://platform.quip.com/1
  # The access token is read from this environment variable.
  tokenEnv: QUIP_ACCESS_TOKEN
  folder: .quip-documents
  # Either "core" or "html-to-markdown".
  converter: core
  mappings:
    # Either "yaml" or "sqlite".
    driver: yaml
    path: .quip-documents/mappings.yaml
`)

	cfg, err := parseYAML(&Config{}, yaml)
	if err != nil {
		panic(err)
	}

	defaults = *cfg
}
