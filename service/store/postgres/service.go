// Package postgres persists workflow aggregates in PostgreSQL.  Update locks
// the workflow row with SELECT ... FOR UPDATE so concurrent decisions on the
// same workflow serialize at the database, and the unique constraints on
// stage order and per-approver decisions back the in-process checks.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearmill/stagegate/model"
	"github.com/gearmill/stagegate/service/dao"
	"github.com/gearmill/stagegate/service/dao/criteria"
	"github.com/gearmill/stagegate/service/store"
)

//go:embed schema.sql
var schemaDDL string

const (
	selectWorkflow = `SELECT id, subject_kind, subject_id, requester_id, policy_id, current_stage_order,
	completed, rejected, cancelled, snapshot, created_at, updated_at, finished_at
FROM workflow WHERE id = $1`

	selectStages = `SELECT id, workflow_id, stage_order, name, required_approvals,
	approver_user_ids, approver_group_ids, approved_count, completed, rejected
FROM workflow_stage WHERE workflow_id = $1 ORDER BY stage_order`

	selectDecisions = `SELECT d.id, d.stage_instance_id, d.approver_id, d.kind, d.comment, d.decided_at
FROM workflow_decision d
JOIN workflow_stage s ON s.id = d.stage_instance_id
WHERE s.workflow_id = $1
ORDER BY d.decided_at, d.id`
)

type service struct {
	pool *pgxpool.Pool
}

var _ store.Service = (*service)(nil)

/* ---------------- construction -------------------------------- */

// New creates a PostgreSQL backed workflow store on top of an existing
// connection pool.
func New(pool *pgxpool.Pool) store.Service {
	return &service{pool: pool}
}

// EnsureSchema creates the backing tables when absent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure workflow schema: %w", err)
	}
	return nil
}

/* ---------------- store.Service ------------------------------- */

func (s *service) Create(ctx context.Context, workflow *model.Workflow) error {
	if workflow == nil {
		return dao.ErrNilEntity
	}
	if workflow.ID == "" {
		return dao.ErrInvalidID
	}
	snapshot, err := encodeSnapshot(workflow.Snapshot)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO workflow
	(id, subject_kind, subject_id, requester_id, policy_id, current_stage_order,
	 completed, rejected, cancelled, snapshot, created_at, updated_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13)`,
		workflow.ID, workflow.Subject.Kind, workflow.Subject.ID, workflow.RequesterID,
		workflow.PolicyID, workflow.CurrentStageOrder, workflow.Completed, workflow.Rejected,
		workflow.Cancelled, snapshot, workflow.CreatedAt, workflow.UpdatedAt, workflow.FinishedAt)
	if err != nil {
		return translate(workflow.ID, err)
	}
	for _, stage := range workflow.Stages {
		_, err = tx.Exec(ctx, `INSERT INTO workflow_stage
	(id, workflow_id, stage_order, name, required_approvals,
	 approver_user_ids, approver_group_ids, approved_count, completed, rejected)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			stage.ID, workflow.ID, stage.Order, stage.Name, stage.RequiredApprovals,
			stage.ApproverUserIDs, stage.ApproverGroupIDs, stage.ApprovedCount,
			stage.Completed, stage.Rejected)
		if err != nil {
			return translate(workflow.ID, err)
		}
		for _, decision := range stage.Decisions {
			if err = insertDecision(ctx, tx, decision); err != nil {
				return translate(workflow.ID, err)
			}
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit workflow %v: %w", workflow.ID, err)
	}
	return nil
}

func (s *service) Load(ctx context.Context, id string) (*model.Workflow, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	return fetch(ctx, s.pool, id, false)
}

func (s *service) Update(ctx context.Context, id string, mutate store.Mutator) (*model.Workflow, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	if mutate == nil {
		return nil, fmt.Errorf("store: nil mutator")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	workflow, err := fetch(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	persisted := decisionIDs(workflow)
	if err = mutate(workflow); err != nil {
		return nil, err
	}
	workflow.Touch()
	if err = persistTransition(ctx, tx, workflow, persisted); err != nil {
		return nil, translate(id, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit workflow %v: %w", id, err)
	}
	return workflow, nil
}

func (s *service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Workflow, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM workflow ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	var out []*model.Workflow
	for _, id := range ids {
		workflow, err := fetch(ctx, s.pool, id, false)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !criteria.FilterByState(workflow.State(), parameters) {
			continue
		}
		if !criteria.FilterBySubjectKind(workflow.Subject.Kind, parameters) {
			continue
		}
		if !criteria.FilterBySubject(workflow.Subject, parameters) {
			continue
		}
		out = append(out, workflow)
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflow WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %v: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %v: %w", id, dao.ErrNotFound)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, id string) ([]string, error) {
	workflow, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return store.Audit(workflow), nil
}

/* ---------------- row mapping --------------------------------- */

// querier abstracts pool and transaction so loads run either standalone or
// under the row lock.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func fetch(ctx context.Context, q querier, id string, forUpdate bool) (*model.Workflow, error) {
	query := selectWorkflow
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		workflow   model.Workflow
		snapshot   []byte
		finishedAt *time.Time
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&workflow.ID, &workflow.Subject.Kind, &workflow.Subject.ID, &workflow.RequesterID,
		&workflow.PolicyID, &workflow.CurrentStageOrder, &workflow.Completed, &workflow.Rejected,
		&workflow.Cancelled, &snapshot, &workflow.CreatedAt, &workflow.UpdatedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %v: %w", id, dao.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %v: %w", id, err)
	}
	workflow.FinishedAt = finishedAt
	if len(snapshot) > 0 {
		workflow.Snapshot = &model.Snapshot{}
		if err = json.Unmarshal(snapshot, workflow.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode workflow %v snapshot: %w", id, err)
		}
	}
	// result sets are drained one at a time: a transaction runs on a single
	// connection and cannot interleave open queries
	if err = fetchStages(ctx, q, &workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow %v stages: %w", id, err)
	}
	if err = fetchDecisions(ctx, q, &workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow %v decisions: %w", id, err)
	}
	return &workflow, nil
}

func fetchStages(ctx context.Context, q querier, workflow *model.Workflow) error {
	rows, err := q.Query(ctx, selectStages, workflow.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		stage := &model.StageInstance{}
		if err = rows.Scan(&stage.ID, &stage.WorkflowID, &stage.Order, &stage.Name,
			&stage.RequiredApprovals, &stage.ApproverUserIDs, &stage.ApproverGroupIDs,
			&stage.ApprovedCount, &stage.Completed, &stage.Rejected); err != nil {
			return err
		}
		workflow.Stages = append(workflow.Stages, stage)
	}
	return rows.Err()
}

func fetchDecisions(ctx context.Context, q querier, workflow *model.Workflow) error {
	byStageID := map[string]*model.StageInstance{}
	for _, stage := range workflow.Stages {
		byStageID[stage.ID] = stage
	}
	rows, err := q.Query(ctx, selectDecisions, workflow.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		decision := &model.Decision{}
		if err = rows.Scan(&decision.ID, &decision.StageInstanceID, &decision.ApproverID,
			&decision.Kind, &decision.Comment, &decision.DecidedAt); err != nil {
			return err
		}
		if stage, ok := byStageID[decision.StageInstanceID]; ok {
			stage.Decisions = append(stage.Decisions, decision)
		}
	}
	return rows.Err()
}

/* ---------------- transition persistence ---------------------- */

// persistTransition writes back the mutable part of the aggregate: workflow
// progression flags, per-stage counters and any decisions appended since the
// aggregate was loaded.  Snapshot, stage identity and existing decisions are
// immutable and never rewritten.
func persistTransition(ctx context.Context, tx pgx.Tx, workflow *model.Workflow, persisted map[string]bool) error {
	_, err := tx.Exec(ctx, `UPDATE workflow
SET current_stage_order = $2, completed = $3, rejected = $4, cancelled = $5,
	updated_at = $6, finished_at = $7
WHERE id = $1`,
		workflow.ID, workflow.CurrentStageOrder, workflow.Completed, workflow.Rejected,
		workflow.Cancelled, workflow.UpdatedAt, workflow.FinishedAt)
	if err != nil {
		return err
	}
	for _, stage := range workflow.Stages {
		_, err = tx.Exec(ctx, `UPDATE workflow_stage
SET required_approvals = $2, approver_user_ids = $3, approved_count = $4,
	completed = $5, rejected = $6
WHERE id = $1`,
			stage.ID, stage.RequiredApprovals, stage.ApproverUserIDs,
			stage.ApprovedCount, stage.Completed, stage.Rejected)
		if err != nil {
			return err
		}
		for _, decision := range stage.Decisions {
			if persisted[decision.ID] {
				continue
			}
			if err = insertDecision(ctx, tx, decision); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertDecision(ctx context.Context, tx pgx.Tx, decision *model.Decision) error {
	_, err := tx.Exec(ctx, `INSERT INTO workflow_decision
	(id, stage_instance_id, approver_id, kind, comment, decided_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		decision.ID, decision.StageInstanceID, decision.ApproverID,
		string(decision.Kind), decision.Comment, decision.DecidedAt)
	return err
}

func decisionIDs(workflow *model.Workflow) map[string]bool {
	out := map[string]bool{}
	for _, stage := range workflow.Stages {
		for _, decision := range stage.Decisions {
			out[decision.ID] = true
		}
	}
	return out
}

func encodeSnapshot(snapshot *model.Snapshot) (*string, error) {
	if snapshot == nil {
		return nil, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	text := string(data)
	return &text, nil
}

// translate maps unique constraint violations onto the store sentinels.
func translate(id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "workflow_decision_approver_unique" {
			return fmt.Errorf("workflow %v: %w", id, store.ErrDuplicateDecision)
		}
		return fmt.Errorf("workflow %v: %w", id, store.ErrDuplicateWorkflow)
	}
	return fmt.Errorf("failed to persist workflow %v: %w", id, err)
}
