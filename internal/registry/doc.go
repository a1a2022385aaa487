// Package registry is the glue between configuration and the module system.
//
// Modules register named factories for the collaborators of a run: tool
// invokers, capability providers, decision oracles, report sinks and
// observers. The application selects factories by name from its config and
// hands each one the settings block of its module.
package registry
