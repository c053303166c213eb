package model

// Package model defines domain data structures used across the tool: dataset
// records from the catalog, BioProjects with their resolved runs, and fetch
// task status enums. Records are plain values; tasks carry explicit state
// transitions.
