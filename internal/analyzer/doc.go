// Package analyzer reads rendered audit reports back into structured
// findings and builds categorized summaries. It works from report text
// alone, so analysis can run long after, and separately from, the audit that
// produced the report.
package analyzer
