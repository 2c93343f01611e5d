// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Function is the name of an analyzed function
	Function = "function"

	// Functions is a number of functions
	Functions = "functions"

	// Blocks is a number of basic blocks
	Blocks = "blocks"

	// Calls is a number of identified call sites
	Calls = "calls"

	// Fallthroughs is a number of return sites
	Fallthroughs = "fallthroughs"

	// Workers is the number of concurrent workers
	Workers = "workers"

	// Arch is an instruction set architecture
	Arch = "arch"

	// Instructions is a number of decoded machine instructions
	Instructions = "instructions"

	// Prologues is a number of detected function prologues
	Prologues = "prologues"

	// File is a path on disk
	File = "file"
)
