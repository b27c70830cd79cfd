// Package pipeline wires the submission flow end to end: resolve the
// region, normalize the fields, build the envelope, dispatch it, and
// classify the remote response into a caller-visible outcome.
package pipeline

import (
	"context"
	"fmt"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/config"
	"formcloud-bridge/internal/dispatch"
	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/routing"
	"formcloud-bridge/internal/transform"
	"formcloud-bridge/internal/validation"
)

// Orchestrator handles one submission at a time through the full pipeline.
// It is safe for concurrent use.
type Orchestrator struct {
	cfg        *config.Config
	engine     *transform.Engine
	dispatcher *dispatch.Dispatcher
	validator  *validation.EnvelopeValidator
	logger     logging.Logger
}

// NewOrchestrator creates the submission pipeline. The validator is only
// used when payload validation is enabled in the configuration.
func NewOrchestrator(cfg *config.Config, engine *transform.Engine, dispatcher *dispatch.Dispatcher, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	o := &Orchestrator{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}
	if cfg.ValidatePayload {
		o.validator = validation.NewEnvelopeValidator()
	}
	return o
}

// HandleSubmission runs one submission through the pipeline.
//
// Local failures (unconfigured region, malformed fields, envelope
// validation) return an error and nothing is dispatched. Dispatch results
// are classified into the returned outcome; the remote errors field is
// checked before eventInstanceId, so a response carrying both reports the
// errors.
func (o *Orchestrator) HandleSubmission(ctx context.Context, raw *models.RawSubmission) (*models.Outcome, error) {
	kind := raw.Kind
	if kind == "" {
		kind = models.KindForForm(raw.FormID)
	}

	region, variant := routing.Resolve(raw.RequestContext)
	creds := o.cfg.CredentialsFor(region)
	if !creds.Configured() {
		return nil, errors.ConfigError(fmt.Sprintf("no credentials configured for region %s", region))
	}

	data, guid, err := o.engine.Normalize(raw, kind)
	if err != nil {
		o.logger.Error("Submission normalization failed", err,
			logging.Field{Key: "form_id", Value: raw.FormID},
		)
		return nil, err
	}

	envelope := &models.EventEnvelope{
		ContactKey:          guid,
		EventDefinitionKey:  o.cfg.EventDefinitionKey,
		EstablishContactKey: true,
		Data:                data,
	}

	if o.validator != nil {
		if err := o.validator.Validate(envelope); err != nil {
			o.logger.Error("Envelope validation failed", err,
				logging.Field{Key: "form_id", Value: raw.FormID},
				logging.Field{Key: "guid", Value: guid},
			)
			return nil, err
		}
	}

	o.logger.Info("Dispatching submission",
		logging.Field{Key: "form_id", Value: raw.FormID},
		logging.Field{Key: "region", Value: string(region)},
		logging.Field{Key: "guid", Value: guid},
	)

	result := o.dispatcher.Send(ctx, creds, variant, envelope)

	// A rejected token is reset and the dispatch retried exactly once
	if result.Kind == dispatch.ResultAuthRejected {
		o.logger.Warn("Token rejected, resetting and retrying dispatch once",
			logging.Field{Key: "guid", Value: guid},
		)
		if resetErr := o.dispatcher.ResetToken(ctx, creds); resetErr != nil {
			o.logger.Warn("Token reset failed",
				logging.Err(resetErr),
			)
		}
		result = o.dispatcher.Send(ctx, creds, variant, envelope)
	}

	return o.classify(raw, guid, result), nil
}

// ResetTokens drops the cached token for every configured region.
func (o *Orchestrator) ResetTokens(ctx context.Context) error {
	var lastErr error
	for _, region := range o.cfg.Regions() {
		if err := o.dispatcher.ResetToken(ctx, o.cfg.CredentialsFor(region)); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// classify maps a dispatch result onto a caller-visible outcome.
func (o *Orchestrator) classify(raw *models.RawSubmission, guid string, result *dispatch.Result) *models.Outcome {
	switch result.Kind {
	case dispatch.ResultDryRun:
		return &models.Outcome{
			Status: models.OutcomeDryRun,
			URL:    result.URL,
			Body:   result.Payload,
		}

	case dispatch.ResultAuthFailure:
		o.logger.Error("No token available, submission not posted", result.Err,
			logging.Field{Key: "form_id", Value: raw.FormID},
			logging.Field{Key: "guid", Value: guid},
		)
		return &models.Outcome{
			Status:  models.OutcomeNoResponse,
			Details: "authentication failed: " + result.Err.Error(),
		}

	case dispatch.ResultAuthRejected:
		o.logger.Error("Token rejected again after reset", nil,
			logging.Field{Key: "guid", Value: guid},
		)
		return &models.Outcome{
			Status:  models.OutcomeNoResponse,
			Details: "authentication rejected by event endpoint",
		}

	case dispatch.ResultTransportFailure:
		o.logger.Error("Event dispatch failed", result.Err,
			logging.Field{Key: "guid", Value: guid},
			logging.Field{Key: "detail", Value: result.Detail()},
		)
		return &models.Outcome{
			Status:  models.OutcomeNoResponse,
			Details: result.Detail(),
		}
	}

	// 2xx response; classify the decoded body
	if len(result.Body) == 0 {
		o.logger.Error("Event endpoint returned no decodable response", nil,
			logging.Field{Key: "guid", Value: guid},
		)
		return &models.Outcome{
			Status:  models.OutcomeNoResponse,
			Details: "empty or undecodable response body",
		}
	}

	// The errors field wins over eventInstanceId when both are present
	if remoteErrs, ok := result.Body["errors"]; ok && remoteErrs != nil {
		o.logger.Error("Event endpoint reported errors", nil,
			logging.Field{Key: "guid", Value: guid},
			logging.Field{Key: "errors", Value: remoteErrs},
		)
		return &models.Outcome{
			Status: models.OutcomeRemoteError,
			Errors: remoteErrs,
		}
	}

	if id, ok := result.Body["eventInstanceId"].(string); ok && id != "" {
		o.logger.Info("Submission accepted",
			logging.Field{Key: "form_id", Value: raw.FormID},
			logging.Field{Key: "guid", Value: guid},
			logging.Field{Key: "event_instance_id", Value: id},
		)
		return &models.Outcome{
			Status:          models.OutcomeSuccess,
			EventInstanceID: id,
		}
	}

	o.logger.Error("Event endpoint response carried neither errors nor an event instance id", nil,
		logging.Field{Key: "guid", Value: guid},
	)
	return &models.Outcome{
		Status:  models.OutcomeAmbiguous,
		Details: "response carried neither errors nor eventInstanceId",
	}
}
