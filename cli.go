package main

type CLI struct {
	Verbose bool   `help:"Prints debug output by default"`
	Profile bool   `help:"Output a pprof profile"`
	Config  string `help:"Path to an HCL config file (default: search /etc/cassette, ~/.config/cassette, .)"`
	Channel int    `help:"Channel to decode, overrides input.channel" default:"-1"`

	Decode struct {
		Files     []string `arg:"" name:"file" help:"Recordings (.wav) to decode"`
		Write     bool     `help:"Write each payload to <recording>.bin"`
		OutputDir string   `help:"Directory for payload files (default: next to the recording)"`
		Workers   int      `help:"Number of recordings decoded at once (default: number of CPUs)"`
	} `cmd:"" help:"Decode cassette recordings back into their data blocks"`

	Analyze struct {
		Files []string `arg:"" name:"file" help:"Recordings (.wav) to analyze"`
		Plot  bool     `help:"Write a histogram of cycle spans to <recording>.spans.png"`
	} `cmd:"" help:"Measure cycle spans and suggest a cycle_threshold"`
}
