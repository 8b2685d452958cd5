package receipt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/gearmill/stagegate/model"
)

// Body is the attested record.  Its canonical JSON rendering is what the
// digest covers, so the field set must stay stable once receipts are in the
// wild.
type Body struct {
	ReceiptID  string    `json:"receiptId"`
	WorkflowID string    `json:"workflowId"`
	Subject    model.Ref `json:"subject"`
	PolicyID   string    `json:"policyId,omitempty"`

	// decision receipts carry the stage and verdict, outcome receipts leave
	// them empty
	StageOrder int    `json:"stageOrder,omitempty"`
	StageName  string `json:"stageName,omitempty"`
	DecisionID string `json:"decisionId,omitempty"`
	ApproverID string `json:"approverId,omitempty"`
	Verdict    string `json:"verdict,omitempty"`
	Comment    string `json:"comment,omitempty"`

	Outcome  string    `json:"outcome"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Receipt binds a body to its signed attestation.  The digest travels inside
// the token subject claim, so a holder can prove the body is the one that was
// signed without access to the signing key.
type Receipt struct {
	Body   Body   `json:"body"`
	Digest string `json:"digest"`
	Token  string `json:"token"`
}

// Digest returns the hex encoded blake2b-256 hash of the canonical body
// rendering.
func (b *Body) Digest() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to render receipt body: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
