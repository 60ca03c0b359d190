// Package validation checks user-provided identifiers before they are used
// as file names or keyring account names.
package validation
