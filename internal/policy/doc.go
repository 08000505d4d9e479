// Package policy decides whether an authenticated identity may pass the
// gateway.
//
// The only rule is membership in the configured allow list: an exact,
// case-sensitive string comparison. The list is loaded once at startup
// and never changes for the life of the process.
package policy
