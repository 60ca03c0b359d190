package workflow

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/autoflow/pkg/credential"
	"github.com/dshills/autoflow/pkg/domain/types"
)

// RedactedValue replaces configuration values that look like credentials in
// exported documents.
const RedactedValue = "<SECRET_REF_REQUIRED>"

// sensitiveKeyPatterns are substrings of configuration field names that
// usually hold credentials.
var sensitiveKeyPatterns = []string{
	"apikey",
	"api_key",
	"accesskey",
	"access_key",
	"privatekey",
	"private_key",
	"secret",
	"token",
	"password",
	"passphrase",
	"credential",
	"authorization",
	"bearer",
}

// credentialPatterns detect well known secret formats in values.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`sk_(live|test)_[a-zA-Z0-9]{24,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+\.?[A-Za-z0-9\-_.+/=]*`),
	regexp.MustCompile(`(?i)-----BEGIN\s+(RSA|DSA|EC|OPENSSH)\s+PRIVATE\s+KEY-----`),
	regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis)://[^:/\s]+:[^@\s]+@`),
}

// Severity ranks credential warnings.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// CredentialWarning is a plain-text value that may be a secret.
type CredentialWarning struct {
	NodeID   types.NodeID
	Field    string
	Severity Severity
	Message  string
}

func (w CredentialWarning) String() string {
	return fmt.Sprintf("[%s] node %s field %s: %s", w.Severity, w.NodeID, w.Field, w.Message)
}

// ScanForCredentials reports configuration values that look like secrets
// stored in plain text. Secret references are never reported.
func ScanForCredentials(wf *Workflow) []CredentialWarning {
	if wf == nil {
		return nil
	}
	var warnings []CredentialWarning
	for _, n := range wf.Nodes {
		for _, field := range sortedFields(n.Configuration) {
			if w, ok := scanValue(n.ID, field, n.Configuration[field]); ok {
				warnings = append(warnings, w)
			}
		}
	}
	return warnings
}

func scanValue(nodeID types.NodeID, field string, v types.Value) (CredentialWarning, bool) {
	s, ok := v.AsString()
	if !ok || s == "" || credential.IsRef(v) || s == RedactedValue {
		return CredentialWarning{}, false
	}
	for _, p := range credentialPatterns {
		if p.MatchString(s) {
			return CredentialWarning{
				NodeID:   nodeID,
				Field:    field,
				Severity: SeverityHigh,
				Message:  "value matches a known credential format",
			}, true
		}
	}
	if isSensitiveKey(field) {
		return CredentialWarning{
			NodeID:   nodeID,
			Field:    field,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("field name suggests a credential; store it with %s<name>", credential.RefPrefix),
		}, true
	}
	if isHighEntropyString(s) {
		return CredentialWarning{
			NodeID:   nodeID,
			Field:    field,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("string has high entropy (%d chars) and may be a credential", len(s)),
		}, true
	}
	return CredentialWarning{}, false
}

func isSensitiveKey(field string) bool {
	lower := strings.ToLower(field)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isHighEntropyString uses normalized Shannon entropy over the characters of
// s. Short strings and text with spaces are ignored.
func isHighEntropyString(s string) bool {
	if len(s) < 20 || strings.ContainsAny(s, " \t\n") {
		return false
	}
	freq := make(map[rune]int)
	n := 0
	for _, r := range s {
		freq[r]++
		n++
	}
	if len(freq) < 2 {
		return false
	}
	var entropy float64
	for _, count := range freq {
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}
	return entropy/math.Log2(float64(n)) > 0.9
}

func sortedFields(cfg types.Config) []string {
	fields := make([]string, 0, len(cfg))
	for f := range cfg {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Export encodes a shareable copy of wf: run state and library bookkeeping
// are dropped and every value reported by ScanForCredentials is replaced by
// RedactedValue. wf is not modified.
func Export(wf *Workflow) ([]byte, error) {
	data, _, err := ExportWithWarnings(wf)
	return data, err
}

// ExportWithWarnings is Export that also returns what was redacted.
func ExportWithWarnings(wf *Workflow) ([]byte, []CredentialWarning, error) {
	if wf == nil {
		return nil, nil, errors.New("workflow cannot be nil")
	}
	warnings := ScanForCredentials(wf)

	out := wf.Clone()
	out.ID = ""
	out.RunCount = 0
	out.LastRun = nil
	out.IsActive = false
	for i := range out.Nodes {
		out.Nodes[i].Status = StatusIdle
		out.Nodes[i].TestResult = nil
	}
	for _, w := range warnings {
		if i := out.NodeIndex(w.NodeID); i >= 0 {
			out.Nodes[i].Configuration[w.Field] = types.String(RedactedValue)
		}
	}

	data, err := ToYAML(out)
	if err != nil {
		return nil, warnings, err
	}
	return data, warnings, nil
}
