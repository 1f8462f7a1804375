// SPDX-License-Identifier: MPL-2.0

// Package testutil provides shared test doubles: a recording addon Sender
// and loggers that write into the test log.
package testutil
