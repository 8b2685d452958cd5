// Package receipt issues signed audit artifacts for recorded decisions and
// terminal outcomes.  A receipt binds the workflow, stage and verdict into a
// canonical body, seals the body digest into a JWT and lets any holder of the
// verification key prove later that the record was not altered.  Keys are
// scy resources, so they may live on any afs supported URL and may themselves
// be encrypted.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/scy"
	"github.com/viant/scy/auth/jwt/signer"
	"github.com/viant/scy/auth/jwt/verifier"
	"github.com/viant/toolbox"

	"github.com/gearmill/stagegate/internal/clock"
	"github.com/gearmill/stagegate/internal/idgen"
	"github.com/gearmill/stagegate/model"
)

// DefaultValidity bounds how long a receipt token verifies.  Receipts are
// audit artifacts, so the window is generous.
const DefaultValidity = 365 * 24 * time.Hour

// Config selects the signing key material.
type Config struct {
	// RSA points at the private key used for signing; it takes precedence
	// over HMAC when both are set
	RSA *scy.Resource `json:"rsa,omitempty" yaml:"rsa,omitempty"`

	// HMAC points at a base64 encoded shared secret
	HMAC *scy.Resource `json:"hmac,omitempty" yaml:"hmac,omitempty"`
}

// Service signs and verifies receipts.
type Service struct {
	config   *Config
	validity time.Duration
}

// New creates a receipt service with the supplied key configuration.
func New(config *Config, options ...Option) *Service {
	ret := &Service{config: config, validity: DefaultValidity}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Option customises the service.
type Option func(*Service)

// WithValidity overrides the token validity window.
func WithValidity(validity time.Duration) Option {
	return func(s *Service) {
		if validity > 0 {
			s.validity = validity
		}
	}
}

/* ---------------- issuing ------------------------------------- */

// IssueDecision signs a receipt for one recorded decision.  The outcome field
// captures the workflow state at issuance time.
func (s *Service) IssueDecision(ctx context.Context, workflow *model.Workflow, decisionID string) (*Receipt, error) {
	if workflow == nil {
		return nil, fmt.Errorf("receipt: nil workflow")
	}
	for _, stage := range workflow.Stages {
		for _, decision := range stage.Decisions {
			if decision.ID != decisionID {
				continue
			}
			return s.issue(ctx, Body{
				ReceiptID:  idgen.New(),
				WorkflowID: workflow.ID,
				Subject:    workflow.Subject,
				PolicyID:   workflow.PolicyID,
				StageOrder: stage.Order,
				StageName:  stage.Name,
				DecisionID: decision.ID,
				ApproverID: decision.ApproverID,
				Verdict:    string(decision.Kind),
				Comment:    decision.Comment,
				Outcome:    workflow.State(),
				IssuedAt:   clock.Now(),
			})
		}
	}
	return nil, fmt.Errorf("receipt: decision %v not found on workflow %v", decisionID, workflow.ID)
}

// IssueOutcome signs a receipt attesting the terminal state of a workflow.
func (s *Service) IssueOutcome(ctx context.Context, workflow *model.Workflow) (*Receipt, error) {
	if workflow == nil {
		return nil, fmt.Errorf("receipt: nil workflow")
	}
	if !workflow.Terminal() {
		return nil, fmt.Errorf("receipt: workflow %v is still active", workflow.ID)
	}
	return s.issue(ctx, Body{
		ReceiptID:  idgen.New(),
		WorkflowID: workflow.ID,
		Subject:    workflow.Subject,
		PolicyID:   workflow.PolicyID,
		Outcome:    workflow.State(),
		IssuedAt:   clock.Now(),
	})
}

func (s *Service) issue(ctx context.Context, body Body) (*Receipt, error) {
	signerConfig, err := s.signerConfig()
	if err != nil {
		return nil, err
	}
	digest, err := body.Digest()
	if err != nil {
		return nil, err
	}
	jwtSigner := signer.New(signerConfig)
	if err = jwtSigner.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize receipt signer: %w", err)
	}

	// the digest rides in the subject claim; the body itself goes along as
	// data so the token stays readable without the receipt at hand
	payload := map[string]interface{}{}
	if err = toolbox.DefaultConverter.AssignConverted(&payload, &body); err != nil {
		return nil, fmt.Errorf("failed to convert receipt body: %w", err)
	}
	claims := map[string]interface{}{
		"jti":  body.ReceiptID,
		"sub":  digest,
		"data": toolbox.DeleteEmptyKeys(payload),
	}
	token, err := jwtSigner.Create(s.validity, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}
	return &Receipt{Body: body, Digest: digest, Token: token}, nil
}

/* ---------------- verification -------------------------------- */

// Verify checks that the receipt token is authentic and still covers the
// carried body.
func (s *Service) Verify(ctx context.Context, r *Receipt) error {
	if r == nil {
		return fmt.Errorf("receipt: nil receipt")
	}
	if r.Token == "" {
		return ErrUnsigned
	}
	verifierConfig, err := s.verifierConfig()
	if err != nil {
		return err
	}
	jwtVerifier := verifier.New(verifierConfig)
	if err = jwtVerifier.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize receipt verifier: %w", err)
	}
	claims, err := jwtVerifier.VerifyClaims(ctx, r.Token)
	if err != nil {
		return fmt.Errorf("failed to verify receipt token: %w", err)
	}
	digest, err := r.Body.Digest()
	if err != nil {
		return err
	}
	// the receipt id is part of the digested body, so this one comparison
	// covers both content and identity
	if claims.Subject != digest {
		return ErrTampered
	}
	return nil
}

/* ---------------- key material -------------------------------- */

func (s *Service) signerConfig() (*signer.Config, error) {
	switch {
	case s.config == nil:
		return nil, ErrNoKey
	case s.config.RSA != nil:
		return &signer.Config{RSA: s.config.RSA}, nil
	case s.config.HMAC != nil:
		return &signer.Config{HMAC: s.config.HMAC}, nil
	}
	return nil, ErrNoKey
}

func (s *Service) verifierConfig() (*verifier.Config, error) {
	if s.config == nil || (s.config.RSA == nil && s.config.HMAC == nil) {
		return nil, ErrNoKey
	}
	ret := &verifier.Config{}
	if s.config.RSA != nil {
		ret.RSA = s.config.RSA
	}
	if s.config.HMAC != nil {
		ret.HMAC = s.config.HMAC
	}
	return ret, nil
}
