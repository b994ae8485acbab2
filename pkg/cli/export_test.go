package cli

// RunForTest runs the command line with captured output streams.
var RunForTest = run
