// Package catalog manages the policy catalog.  It stores approval policies,
// validates them and selects the policy that governs a new workflow based on
// subject kind, matching criteria and selection priority.
package catalog
