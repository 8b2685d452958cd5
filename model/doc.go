// Package model contains the in-memory representation of approval policies,
// workflow instances and supporting types used by the Stagegate engine.
//
// A policy is typically loaded from a YAML or JSON document into the Policy
// and Stage structures, or assembled programmatically with the builder
// methods.  Submitting a subject against a policy produces a Workflow with
// one StageInstance per stage and a frozen Snapshot of the configuration the
// run was created under; decisions append to stage instances and never
// mutate history.
package model
