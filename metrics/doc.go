// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus counters for vote casting and live
// result fan-out. Collectors live on a private registry served by Handler.
package metrics
