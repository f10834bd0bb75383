// Package adapter defines the contract boundary between tool-calling code and
// provider-specific converters.
//
// The package is split by concern:
//   - adapter: the Adapter interface, Tool descriptor, and shared helpers
//   - class: Class, the constructible form of an adapter implementation
//   - validate: structural contract checks (basic and strict)
//   - errors: error codes and sentinels shared by registry, factory, and manager
//   - observability: Observer hooks for resolution, builds, and fallback
//
// Nothing in this package knows about any concrete provider wire format.
package adapter
