package ui

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// Layout picks which per-layout preferences apply: "pc" or "mobile".
	Layout string `env:"READALOUD_LAYOUT" envDefault:"pc"`

	// Text to load into the editor on start.
	Text string
	// Start reading Text right away.
	AutoPlay bool
	// Name of the loaded document, shown until a title exists.
	Source string

	// Prefix each take with its label.
	ShowTakeNumbers bool `env:"READALOUD_SHOW_TAKE_NUMBERS" envDefault:"false"`
}
