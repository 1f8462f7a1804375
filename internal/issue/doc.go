// SPDX-License-Identifier: MPL-2.0

// Package issue provides operator-facing errors that carry the failed
// operation, the resource involved and remediation hints.
package issue
