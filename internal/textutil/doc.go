// Package textutil holds small string helpers shared by the CLI, staging and
// bundle packages: filesystem-safe tokens and display truncation.
package textutil
