// Package schema checks datapoints submitted by a DataSource against the
// schema it declared at initialization.
package schema

// Schema describes the shape a datapoint must have. Only the key set is
// significant; values are ignored.
type Schema map[string]any

// Datapoint is a single record pushed by a DataSource.
type Datapoint map[string]any

// Validate reports whether every key of s is present in d.
//
// The check is one-directional: a datapoint may carry keys the schema does
// not declare. Value types and nested structure are not inspected, and an
// empty schema accepts any datapoint.
func Validate(s Schema, d Datapoint) bool {
	for key := range s {
		if _, ok := d[key]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the schema keys absent from d, for diagnostics.
func Missing(s Schema, d Datapoint) []string {
	var missing []string
	for key := range s {
		if _, ok := d[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
