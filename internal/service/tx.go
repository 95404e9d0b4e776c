package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/crypto"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Submitter executes submissions. *chain.Host implements it.
type Submitter interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.Receipt, error)
}

// EnvelopeVerifier recovers the signer of a request envelope.
type EnvelopeVerifier interface {
	EnvelopeSender(env crypto.Envelope) (common.Address, error)
}

// TxConfig tunes a TxService.
type TxConfig struct {
	// MaxClockSkew bounds |envelope timestamp - now|.
	MaxClockSkew time.Duration
	Clock        func() time.Time
}

// TxService authenticates signed envelopes and hands them to the host.
type TxService struct {
	host     Submitter
	verifier EnvelopeVerifier
	cfg      TxConfig
	logger   *slog.Logger
}

// NewTxService creates a TxService.
func NewTxService(host Submitter, verifier EnvelopeVerifier, cfg TxConfig, logger *slog.Logger) *TxService {
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &TxService{
		host:     host,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "tx_service")),
	}
}

// Submit verifies env and executes it as its signer. The receipt is returned
// for failed calls too; its error is the protocol error. A zero Seq means
// nothing was journaled.
func (t *TxService) Submit(ctx context.Context, env crypto.Envelope) (domain.Receipt, error) {
	if env.Action == "" {
		return domain.Receipt{}, fmt.Errorf("%w: action is required", domain.ErrBadPayload)
	}
	if env.Nonce == 0 {
		return domain.Receipt{}, fmt.Errorf("%w: nonce must be positive", domain.ErrBadPayload)
	}
	skew := t.cfg.Clock().Sub(time.Unix(env.Timestamp, 0))
	if skew > t.cfg.MaxClockSkew || skew < -t.cfg.MaxClockSkew {
		return domain.Receipt{}, fmt.Errorf("%w: timestamp %d is %s away from node time",
			domain.ErrBadSignature, env.Timestamp, skew.Round(time.Second))
	}
	sender, err := t.verifier.EnvelopeSender(env)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}

	r, err := t.host.Submit(ctx, domain.Submission{
		Sender:  sender,
		Nonce:   env.Nonce,
		Action:  env.Action,
		Payload: env.Payload,
	})
	switch {
	case err == nil:
		t.logger.InfoContext(ctx, "tx committed",
			slog.Int64("seq", r.Seq),
			slog.String("action", r.Action),
			slog.String("sender", sender.Hex()),
		)
	case r.Seq > 0:
		t.logger.InfoContext(ctx, "tx reverted",
			slog.Int64("seq", r.Seq),
			slog.String("action", r.Action),
			slog.String("sender", sender.Hex()),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, domain.ErrHalted):
		t.logger.ErrorContext(ctx, "tx refused, producer halted", slog.String("error", err.Error()))
	}
	return r, err
}
