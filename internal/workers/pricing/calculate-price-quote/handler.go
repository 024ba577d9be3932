package calculatepricequote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/takeymahesh06/silaiwala/internal/common/config"
	"github.com/takeymahesh06/silaiwala/internal/common/errors"
	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/metrics"
	"github.com/takeymahesh06/silaiwala/internal/pricing"
)

const TaskType = "calculate-price-quote"

// HistoryRecorder stores issued quotes. *pricing.HistoryStore satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, orderID string, req pricing.QuoteRequest, res pricing.QuoteResult) (*pricing.HistoryRecord, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	quoter     pricing.Quoter
	history    HistoryRecorder
	errHandler *errors.ErrorHandler
	now        func() time.Time
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Quoter       pricing.Quoter
	// History is optional; without it quotes are not persisted.
	History HistoryRecorder
	Logger  logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Quoter == nil {
		return nil, fmt.Errorf("%s requires a quoter", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:     workerConfig,
		logger:     loggerInstance,
		quoter:     opts.Quoter,
		history:    opts.History,
		errHandler: errors.NewErrorHandler(loggerInstance),
		now:        time.Now,
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

// Handle runs one job. The configured timeout bounds the quote and the
// history write; the broker commands that report the outcome get their own
// deadline.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing price quote request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	if !h.config.Enabled {
		h.completeJob(ctx, client, job, &Output{
			QuoteAvailable: false,
			QuotedAt:       h.now().UTC(),
			Message:        "price quoting disabled",
		})
		return
	}

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidSelectionError("failed to parse job variables: " + err.Error())
	}

	if result := GetInputSchema().Validate(variables); !result.Valid {
		return nil, errors.NewInvalidSelectionError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewInvalidSelectionError("failed to decode job variables: " + err.Error())
	}
	return &input, nil
}

// Execute prices one order. A pricing service that answers without a price
// is a business outcome (PRICE_UNAVAILABLE); an unreachable one is retried.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	sel, err := input.Selection()
	if err != nil {
		return nil, errors.NewInvalidSelectionError(err.Error())
	}
	if !sel.Ready() {
		return nil, errors.NewInvalidSelectionError("serviceId and areaId are required")
	}

	req := pricing.BuildRequest(sel)
	res := h.quoter.FetchQuote(ctx, req)

	if !res.OK() {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return nil, errors.NewPricingAPITimeoutError()
		case res.Transient:
			return nil, errors.NewPricingAPIFailedError(res.Message)
		default:
			return nil, errors.NewPriceUnavailableError(res.Message)
		}
	}

	price, _ := res.Price()
	output := &Output{
		QuoteAvailable:  true,
		CalculatedPrice: &price,
		BasePrice:       res.BasePrice,
		PriceMultiplier: res.PriceMultiplier,
		ConfidenceScore: res.ConfidenceScore,
		FactorsApplied:  res.FactorsApplied,
		QuotedAt:        h.now().UTC(),
	}

	if h.history != nil && h.config.RecordHistory {
		rec, err := h.history.Record(ctx, input.OrderID, req, res)
		if err != nil {
			if stderrors.Is(err, sql.ErrConnDone) || stderrors.Is(err, driver.ErrBadConn) {
				return nil, errors.NewDatabaseConnectionFailedError(err)
			}
			return nil, errors.NewDatabaseInsertFailedError(err)
		}
		output.QuoteID = rec.ID
		output.QuotedAt = rec.CreatedAt
	}

	h.logger.Info("Price quote calculated", map[string]interface{}{
		"orderId":         input.OrderID,
		"serviceId":       req.ServiceID,
		"areaId":          req.AreaID,
		"calculatedPrice": price,
		"quoteId":         output.QuoteID,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	ctx, cancel := errors.CommandContext(ctx)
	defer cancel()

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	fields := map[string]interface{}{
		"jobKey":         job.GetKey(),
		"quoteAvailable": output.QuoteAvailable,
	}
	if output.CalculatedPrice != nil {
		fields["calculatedPrice"] = *output.CalculatedPrice
	}
	h.logger.Info("Successfully completed price quote", fields)
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}
