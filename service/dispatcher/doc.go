// Package dispatcher hosts the workers that deliver workflow lifecycle
// events to business collaborators.  Every worker consumes items from the
// activity feed and invokes the outcome observer registered for the subject
// kind, so terminal side effects (closing the subject, cutting purchase
// orders, mail) stay outside the engine's transaction.
package dispatcher
