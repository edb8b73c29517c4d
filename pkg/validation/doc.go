// Package validation decides whether dynamic field values satisfy the
// descriptors a content type supplies. The rule semantics are pluggable: the
// form state store accepts any Policy, and RulesPolicy is the default that
// interprets the canonical rules from pkg/model. The package also owns the
// alias shape check and the markup sanitizer applied before persistence.
package validation
