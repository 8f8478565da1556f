// Package testsupport builds temp-directory configs, fixture files and ledger
// stores for package tests.
package testsupport
