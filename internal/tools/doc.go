// Package tools defines the contracts between the execution engine and the
// services that actually touch infrastructure: the Tool Invocation Service
// (Invoker) and the Capability Set Provider (Provider).
//
// Concrete transports live in modules/ and are selected by name at startup.
package tools
