// Package agency defines the records extracted from the SBAT portal and their
// fixed tabular layout.
//
// A Record is one treatment agency listing; a Service is one entry of the portal's
// service-type filter. Records are flattened into a stable column set (see Columns)
// so CSV files from different runs share the same header. Each agency also gets a
// deterministic Key derived from its name and address, which Diff uses to report
// bed and intake-appointment changes between runs.
package agency
