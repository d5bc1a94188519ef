// Package secretspec defines the per-key generation settings of a multi-value secret.
//
// A secret holds several independently generated values (API keys, passwords,
// tokens) under one record. Each value is described by a Spec; the ordered List
// of specs is the whole configuration of the secret.
//
// # Validation
//
// A List is validated before any value is generated:
//
//   - the list must not be empty
//   - every name must be non-empty and unique within the list
//   - every length must be positive
//   - a template requires a generateStringKey and must be a JSON object
//
// Violations are reported as *ConfigurationError.
//
// # Fingerprint
//
// Fingerprint reduces a List to a short hexadecimal string. The orchestration
// layer stores it next to the secret and compares it on every deployment; a
// different fingerprint means the configuration changed and every value must be
// regenerated.
//
//	fp := secretspec.Fingerprint(list)
//	if fp != previous {
//	    // regenerate the whole document
//	}
//
// The fingerprint is a change-detection signal only and is not a security
// boundary.
package secretspec
