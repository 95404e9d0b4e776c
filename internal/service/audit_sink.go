package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// privileged are the logs only an owner, admin or the treasury can cause.
var privileged = map[string]bool{
	domain.LogOwnershipTransferred:  true,
	domain.LogAdminAdded:            true,
	domain.LogAdminRemoved:          true,
	domain.LogProposerAdded:         true,
	domain.LogProposerRemoved:       true,
	domain.LogCollectionAdded:       true,
	domain.LogCollectionRemoved:     true,
	domain.LogEventAccepted:         true,
	domain.LogEventRejected:         true,
	domain.LogEventPaused:           true,
	domain.LogEventUnpaused:         true,
	domain.LogEventResolved:         true,
	domain.LogEventDisqualified:     true,
	domain.LogProposalFeeSet:        true,
	domain.LogTreasuryWithdrawn:     true,
	domain.LogTreasuryFeesWithdrawn: true,
	domain.LogThresholdSet:          true,
}

// AuditSink writes privileged logs to the audit log as "log.<Name>".
type AuditSink struct {
	audit domain.AuditStore
}

// NewAuditSink creates an AuditSink.
func NewAuditSink(audit domain.AuditStore) *AuditSink {
	return &AuditSink{audit: audit}
}

// Name implements chain.Sink.
func (a *AuditSink) Name() string { return "audit" }

// Handle implements chain.Sink.
func (a *AuditSink) Handle(ctx context.Context, r domain.Receipt) error {
	var errs []error
	for _, l := range r.Logs {
		if !privileged[l.Name] {
			continue
		}
		detail := l.Map()
		detail["seq"] = r.Seq
		detail["tx_id"] = r.TxID
		detail["sender"] = r.Sender.Hex()
		detail["action"] = r.Action
		if err := a.audit.Log(ctx, "log."+l.Name, detail); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("audit sink: seq %d: %w", r.Seq, err)
	}
	return nil
}

var _ chain.Sink = (*AuditSink)(nil)
