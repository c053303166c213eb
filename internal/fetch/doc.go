package fetch

// Package fetch executes the commands built by package command, one external
// process at a time. The toolkit binaries do their own transfers, resumption
// and threading; this package only sequences them, records a task per
// invocation and propagates failures. Dry-run mode prints instead.
