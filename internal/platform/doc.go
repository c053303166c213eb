package platform

// Package platform contains OS integration and external tooling glue:
// output tree layout, discovery of the SRA Toolkit and metadata binaries on
// PATH, and parsing of the run tables those tools write.
