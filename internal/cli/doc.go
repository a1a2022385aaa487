// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates flags, the config file and RUNBOOKGO_ environment variables
// into the application's internal configuration.
package cli
