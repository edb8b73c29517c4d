// Package model defines the reference data and field descriptors a site
// request form works with. Divisions and site templates are the two cascading
// selections; a template names the content type whose Field descriptors make
// up the dynamic part of the form. Validation rules expose canonical
// identifiers (min/max, minLength/maxLength, pattern) with string parameters
// so policies and prompt drivers can interpret them without sacrificing
// deterministic JSON and YAML snapshots.
package model
