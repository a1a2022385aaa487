// Package env_vars collects runbook variables from the process environment.
package env_vars

import (
	"os"
	"strings"
)

// DefaultPrefix marks environment variables that set runbook variables:
// RUNBOOK_VAR_service=nginx sets var.service.
const DefaultPrefix = "RUNBOOK_VAR_"

// Collect returns the variables found in environ, which has the form of
// os.Environ. Names are taken verbatim after the prefix.
func Collect(environ []string, prefix string) map[string]string {
	vars := make(map[string]string)
	for _, e := range environ {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			vars[name] = value
		}
	}
	return vars
}

// FromEnvironment collects variables with DefaultPrefix from os.Environ.
func FromEnvironment() map[string]string {
	return Collect(os.Environ(), DefaultPrefix)
}
