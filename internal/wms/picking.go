package wms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/services"
	"fulfill/internal/session"
)

const (
	querySKUPath    = "/wms-web/rfweb/rfController/querySoSkuBySn"
	createOrderPath = "/wms-web/rfweb/rfController/saveWmsSoOrder"
	pickDetailPath  = "/wms-web/rfweb/rfController/WMSRF_PK_QueryPickDetail"
	confirmPickPath = "/wms-web/rfweb/rfController/pickBySnCode"

	// Outbound order type for user returns taken back to stock.
	soTypeUserReturn = "YHJCK"
)

// Saga step names recorded on orphaned orders.
const (
	StepQuery       = "query"
	StepCreate      = "create_order"
	StepPickDetail  = "pick_detail"
	StepConfirmPick = "confirm_pick"
)

// Envelope is the wms-web JSON response wrapper. Data stays raw because its
// shape differs per endpoint; a nil Data means the key was absent.
type Envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Picker runs the picking saga against an authenticated warehouse session.
type Picker struct {
	session *session.Session
	logger  *slog.Logger
	now     func() time.Time
}

// NewPicker returns a Picker.
func NewPicker(sess *session.Session, logger *slog.Logger) *Picker {
	return &Picker{
		session: sess,
		logger:  logging.NewComponentLogger(logger, "picking").With(logging.System(System)),
		now:     time.Now,
	}
}

// Pick runs the four saga steps for item in order and stops at the first
// failure. Failures after the outbound order exists carry a
// *services.OrphanedOrder so operators can reconcile it.
func (p *Picker) Pick(ctx context.Context, item fulfillment.WorkItem) fulfillment.PickResult {
	ctx = services.WithSN(ctx, item.SN)
	logger := logging.WithContext(ctx, p.logger)
	result := fulfillment.PickResult{SN: item.SN}

	sku, err := p.querySKU(ctx, item.SN)
	if err != nil {
		return p.fail(logger, result, fulfillment.MessageQueryFailed, err)
	}

	soNo, err := p.createOrder(ctx, sku)
	if err != nil {
		return p.fail(logger, result, fulfillment.MessageCreateFailed, err)
	}
	result.SONo = soNo

	if err := p.queryPickDetail(ctx, soNo); err != nil {
		return p.fail(logger, result, fulfillment.MessagePickDetailFailed,
			&services.OrphanedOrder{SONo: soNo, SN: item.SN, Step: StepPickDetail, Err: err})
	}

	if err := p.confirmPick(ctx, soNo, item.SN); err != nil {
		return p.fail(logger, result, fulfillment.MessageConfirmPickFailed,
			&services.OrphanedOrder{SONo: soNo, SN: item.SN, Step: StepConfirmPick, Err: err})
	}

	result.Success = true
	result.Message = fulfillment.MessagePicked
	result.CompletedAt = p.now()
	logger.Info("sn picked",
		logging.String(logging.FieldEventType, "pick_succeeded"),
		logging.SONo(soNo),
	)
	return result
}

func (p *Picker) fail(logger *slog.Logger, result fulfillment.PickResult, message string, err error) fulfillment.PickResult {
	result.Success = false
	result.Message = message
	result.Err = err
	attrs := []logging.Attr{logging.Error(err)}
	if result.SONo != "" {
		attrs = append(attrs,
			logging.SONo(result.SONo),
			logging.String(logging.FieldImpact, "outbound order left unconfirmed on the warehouse system"),
			logging.String(logging.FieldErrorHint, "reconcile with 'fulfill orphans'"),
		)
	}
	logging.WarnWithContext(logger, "pick failed: "+message, "pick_failed", attrs...)
	return result
}

// PickBatch picks items sequentially and returns one result per item in input
// order. A failed item never stops the batch.
func (p *Picker) PickBatch(ctx context.Context, items []fulfillment.WorkItem) []fulfillment.PickResult {
	logger := logging.WithContext(ctx, p.logger)
	results := make([]fulfillment.PickResult, 0, len(items))
	succeeded := 0
	for idx, item := range items {
		logger.Debug("picking sn",
			logging.SN(item.SN),
			logging.Int("index", idx+1),
			logging.Int("total", len(items)),
		)
		r := p.Pick(ctx, item)
		if r.Success {
			succeeded++
		}
		results = append(results, r)
	}
	logger.Info("pick batch complete",
		logging.String(logging.FieldEventType, "pick_batch_complete"),
		logging.String("result", fmt.Sprintf("success %d/%d", succeeded, len(items))),
		logging.Int("picked", succeeded),
		logging.Int("failed", len(items)-succeeded),
	)
	return results
}

func (p *Picker) querySKU(ctx context.Context, sn string) (json.RawMessage, error) {
	env, err := p.post(ctx, querySKUPath, map[string]any{"snCode": sn})
	if err != nil {
		return nil, err
	}
	if isEmptyJSON(env.Data) {
		return nil, services.Wrap(services.ErrBackend, System, StepQuery, "no sku for sn"+backendMsg(env), nil)
	}
	return env.Data, nil
}

func (p *Picker) createOrder(ctx context.Context, sku json.RawMessage) (string, error) {
	order := map[string]any{
		"customerCode": nil,
		"customerName": nil,
		"items":        []json.RawMessage{sku},
		"soType":       soTypeUserReturn,
		"whCode":       nil,
		"whName":       nil,
	}
	env, err := p.post(ctx, createOrderPath, order)
	if err != nil {
		return "", err
	}
	soNo := scalarString(env.Data)
	if soNo == "" {
		return "", services.Wrap(services.ErrBackend, System, StepCreate, "no order number returned"+backendMsg(env), nil)
	}
	return soNo, nil
}

func (p *Picker) queryPickDetail(ctx context.Context, soNo string) error {
	env, err := p.post(ctx, pickDetailPath, map[string]any{
		"allocId":      nil,
		"currentIndex": 1,
		"pickNo":       nil,
		"soDeliver":    "Y",
		"soNo":         soNo,
		"toId":         nil,
	})
	if err != nil {
		return err
	}
	if !pickDetailAccepted(env) {
		return services.Wrap(services.ErrBackend, System, StepPickDetail, "pick detail rejected"+backendMsg(env), nil)
	}
	return nil
}

// pickDetailAccepted is the acceptance rule for the pick-detail query. The
// backend sometimes omits success while returning data, so either counts.
func pickDetailAccepted(env Envelope) bool {
	return env.Success || env.Data != nil
}

func (p *Picker) confirmPick(ctx context.Context, soNo, sn string) error {
	env, err := p.post(ctx, confirmPickPath, map[string]any{"soNo": soNo, "snCode": sn})
	if err != nil {
		return err
	}
	if !env.Success {
		return services.Wrap(services.ErrBackend, System, StepConfirmPick, "pick not confirmed"+backendMsg(env), nil)
	}
	return nil
}

func (p *Picker) post(ctx context.Context, path string, payload any) (Envelope, error) {
	var env Envelope
	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode %s payload: %w", path, err)
	}
	form := url.Values{}
	form.Set("data", string(data))
	if _, err := p.session.PostFormJSON(ctx, path, form, &env); err != nil {
		return env, err
	}
	return env, nil
}

// isEmptyJSON treats null, false, 0, "", {} and [] as empty.
func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`, "{}", "[]":
		return true
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return true
		}
		switch typed := v.(type) {
		case map[string]any:
			return len(typed) == 0
		case []any:
			return len(typed) == 0
		}
	}
	return false
}

// scalarString returns a JSON string or number as text, "" otherwise.
func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		return n.String()
	}
	return ""
}

func backendMsg(env Envelope) string {
	if msg := firstNonEmpty(env.Msg, env.Message); msg != "" {
		return ": " + msg
	}
	return ""
}
