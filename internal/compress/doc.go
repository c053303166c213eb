package compress

// Package compress gzips the FASTQ files a dump step leaves behind, using pigz
// (or gzip) as an external process. One invocation covers every file of a run.
