package stagegate

import (
	"context"
	"fmt"
	"time"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/progress"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/catalog/loader"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/directory"
	"github.com/gearmill/stagegate/service/dispatcher"
	"github.com/gearmill/stagegate/service/engine"
	"github.com/gearmill/stagegate/service/event"
	"github.com/gearmill/stagegate/service/receipt"
	"github.com/gearmill/stagegate/service/store"
)

// Runtime is the operating surface of an assembled service.  Submissions,
// decisions and reads flow through it once Start has been called.
type Runtime struct {
	engine     engine.Service
	catalog    catalog.Service
	directory  directory.Service
	workflows  store.Service
	events     *event.Service
	receipts   *receipt.Service
	loader     *loader.Service
	dispatcher *dispatcher.Service

	catalogURL  string
	seedCatalog bool
}

// ---------------------------------------------------------------------------
// Catalog hot-swap helpers
// ---------------------------------------------------------------------------

// LoadCatalog reads the policy document at the given URL and stores every
// policy it defines, replacing prior versions with the same id.  Returns the
// number of policies applied.
func (r *Runtime) LoadCatalog(ctx context.Context, URL string) (int, error) {
	if r == nil || r.loader == nil {
		return 0, fmt.Errorf("runtime not fully initialised, catalog loader missing")
	}
	policies, err := r.loader.Load(ctx, URL)
	if err != nil {
		return 0, err
	}
	for _, policy := range policies {
		if err := r.catalog.Save(ctx, policy); err != nil {
			return 0, fmt.Errorf("failed to store policy %s: %w", policy.Name, err)
		}
	}
	return len(policies), nil
}

// UpsertPolicies parses the supplied YAML bytes and stores the resulting
// policies directly in the catalog.  Catalog changes become live without a
// round-trip through the document store; workflows already open keep their
// frozen snapshots.
func (r *Runtime) UpsertPolicies(ctx context.Context, data []byte) ([]*model.Policy, error) {
	if r == nil || r.loader == nil {
		return nil, fmt.Errorf("runtime not fully initialised, catalog loader missing")
	}
	policies, err := r.loader.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog YAML: %w", err)
	}
	for _, policy := range policies {
		if err := r.catalog.Save(ctx, policy); err != nil {
			return nil, err
		}
	}
	return policies, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start applies the configured catalog document and begins outcome
// dispatching.
func (r *Runtime) Start(ctx context.Context) error {
	if r.seedCatalog && r.catalogURL != "" {
		if err := r.loader.Seed(ctx, r.catalogURL); err != nil {
			return err
		}
	}
	if r.catalogURL != "" {
		if _, err := r.LoadCatalog(ctx, r.catalogURL); err != nil {
			return err
		}
	}
	if r.dispatcher != nil {
		return r.dispatcher.Start(ctx)
	}
	return nil
}

// Shutdown stops outcome dispatching; events already dequeued finish
// delivery.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.dispatcher != nil {
		r.dispatcher.Shutdown()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Engine operations
// ---------------------------------------------------------------------------

// Submit opens an approval workflow for a business subject.
func (r *Runtime) Submit(ctx context.Context, request *engine.SubmitRequest) (*model.Workflow, error) {
	return r.engine.Submit(ctx, request)
}

// Decide records one approver verdict on the workflow's current stage.
func (r *Runtime) Decide(ctx context.Context, request *engine.DecideRequest) (*engine.DecideResponse, error) {
	return r.engine.Decide(ctx, request)
}

// Cancel terminates an active workflow without a verdict.
func (r *Runtime) Cancel(ctx context.Context, workflowID, actorID string) (*model.Workflow, error) {
	return r.engine.Cancel(ctx, workflowID, actorID)
}

// Workflow returns a workflow aggregate
func (r *Runtime) Workflow(ctx context.Context, id string) (*model.Workflow, error) {
	return r.engine.Lookup(ctx, id)
}

// Workflows returns workflows admitted by the supplied parameters
func (r *Runtime) Workflows(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Workflow, error) {
	return r.workflows.List(ctx, parameters...)
}

// WorkflowFor returns the most recent workflow opened for the subject,
// terminal or not.
func (r *Runtime) WorkflowFor(ctx context.Context, subject model.Ref) (*model.Workflow, error) {
	matched, err := r.workflows.List(ctx, &dao.Parameter{Name: dao.ParamSubject, Value: subject})
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("subject %v: %w", subject, dao.ErrNotFound)
	}
	return matched[len(matched)-1], nil
}

// PendingFor returns the active workflows awaiting a decision by the given
// user.
func (r *Runtime) PendingFor(ctx context.Context, userID string) ([]*model.Workflow, error) {
	return r.engine.PendingFor(ctx, userID)
}

// Progress summarises stage and decision counts for dashboards.
func (r *Runtime) Progress(ctx context.Context, workflowID string) (progress.Counters, error) {
	workflow, err := r.engine.Lookup(ctx, workflowID)
	if err != nil {
		return progress.Counters{}, err
	}
	return progress.Of(workflow), nil
}

// Verify audits the stored aggregate against its recorded decisions.
func (r *Runtime) Verify(ctx context.Context, workflowID string) ([]string, error) {
	return r.engine.Verify(ctx, workflowID)
}

// Drift renders how the live policy diverged from the workflow's frozen
// snapshot.
func (r *Runtime) Drift(ctx context.Context, workflowID string) (string, model.DiffStats, error) {
	return r.engine.Drift(ctx, workflowID)
}

// Catalog exposes the policy catalog for administrative tooling.
func (r *Runtime) Catalog() catalog.Service {
	return r.catalog
}

// Directory exposes the principal directory.
func (r *Runtime) Directory() directory.Service {
	return r.directory
}

// Events exposes the lifecycle event feed so collaborators can subscribe to
// non-terminal topics such as stage advancement.
func (r *Runtime) Events() *event.Service {
	return r.events
}

// WaitForOutcome polls the workflow until it reaches a terminal state.  It
// is intended for demos and tests where approvals arrive asynchronously.
func (r *Runtime) WaitForOutcome(ctx context.Context, workflowID string, timeout time.Duration) (*model.Workflow, error) {
	deadline := time.Now().Add(timeout)
	for {
		workflow, err := r.workflows.Load(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if workflow.Terminal() {
			return workflow, nil
		}
		if time.Now().After(deadline) {
			return workflow, fmt.Errorf("timeout waiting for workflow %q", workflowID)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// Receipts
// ---------------------------------------------------------------------------

// DecisionReceipt issues a signed receipt for one recorded decision.
func (r *Runtime) DecisionReceipt(ctx context.Context, workflowID, decisionID string) (*receipt.Receipt, error) {
	if r.receipts == nil {
		return nil, fmt.Errorf("no receipt signer configured")
	}
	workflow, err := r.engine.Lookup(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return r.receipts.IssueDecision(ctx, workflow, decisionID)
}

// OutcomeReceipt issues a signed receipt for a terminal workflow outcome.
func (r *Runtime) OutcomeReceipt(ctx context.Context, workflowID string) (*receipt.Receipt, error) {
	if r.receipts == nil {
		return nil, fmt.Errorf("no receipt signer configured")
	}
	workflow, err := r.engine.Lookup(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return r.receipts.IssueOutcome(ctx, workflow)
}

// VerifyReceipt checks a receipt's signature and content digest.
func (r *Runtime) VerifyReceipt(ctx context.Context, aReceipt *receipt.Receipt) error {
	if r.receipts == nil {
		return fmt.Errorf("no receipt signer configured")
	}
	return r.receipts.Verify(ctx, aReceipt)
}
