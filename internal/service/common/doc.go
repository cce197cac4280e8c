// Package common holds helpers shared by several services.
//
// It provides a small HTTP client wrapper that applies a per-call timeout,
// stamps the User-Agent and maps transport failures and non-success
// statuses to release.ErrNetwork.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
