// Package stagegate provides a generic multi-stage approval workflow engine.
//
// Business subjects (expense reports, purchase orders, overtime requests)
// are routed through approval policies defined in a catalog and come with
// pluggable service layers such as:
//
//   - catalog   - policy templates, match criteria and selection priority
//   - directory - approver groups expanded to users at submission
//   - engine    - quorum tracking, auto-advance and the decision ledger
//   - receipt   - signed audit receipts for decisions and outcomes
//
// Stagegate is designed to be embedded in host applications.  End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv := stagegate.New()
//	rt  := srv.Runtime()
//	_ = rt.Start(ctx)
//	wf, _ := rt.Submit(ctx, &engine.SubmitRequest{Subject: subject, RequesterID: "u-1"})
//	out, _ := rt.Decide(ctx, &engine.DecideRequest{WorkflowID: wf.ID, ApproverID: "u-2", Approve: true})
//
// For more details see the README and individual sub-packages.
package stagegate
