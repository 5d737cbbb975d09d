package logistics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"

	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/services"
)

const (
	shipPath = "/wms-web/oubweb/outboundShippmentController/shipmentByAllocListNew.shtml"

	DefaultCarrierName = "顺丰速运"
	DefaultCarrierCode = "shunfeng"

	// UnknownCustomer stands in for an SN with no exported customer name.
	UnknownCustomer = "unknown"

	tpTypeCarrier    = "0"
	tpTypeSelfPickup = "3"
)

// vas is the value-added-service block sent with a dispatch. Pointer fields
// marshal as null.
type vas struct {
	TPType            string  `json:"tpType"`
	CarrierName       string  `json:"carrierName"`
	CarrierCode       string  `json:"carrierCode"`
	AllocateInWhNames *string `json:"allocateInWhNames"`
	TransitWarehouse  *string `json:"transitWarehouse"`
	CttaName          *string `json:"cttaName"`
	LogisticType      *string `json:"logisticType"`
	Def1              *string `json:"def1"`
	Weight            *string `json:"weight"`
	Cubic             *string `json:"cubic"`
	InsuredValue      *string `json:"insuredValue"`
	ContactTel        *string `json:"contactTel"`
	TPNo              *string `json:"tpNo"`
	PackageNo         *string `json:"packageNo"`
	SNCode            *string `json:"snCode"`
	SONo              string  `json:"soNo"`
}

func (s *Shipper) buildVAS(soNo string, selfPickup bool) vas {
	if selfPickup {
		return vas{TPType: tpTypeSelfPickup, SONo: soNo}
	}
	tracking := ""
	return vas{
		TPType:      tpTypeCarrier,
		CarrierName: s.carrierName,
		CarrierCode: s.carrierCode,
		TPNo:        &tracking,
		SONo:        soNo,
	}
}

type shipResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// BuildShipForm assembles the dispatch form for one candidate.
func (s *Shipper) BuildShipForm(cand fulfillment.ShipmentCandidate, selfPickup bool) (url.Values, error) {
	vasJSON, err := json.Marshal([]vas{s.buildVAS(cand.SONo, selfPickup)})
	if err != nil {
		return nil, fmt.Errorf("encode vas: %w", err)
	}
	row := make(map[string]any, len(cand.Row)+3)
	maps.Copy(row, cand.Row)
	row["id"] = "1"
	row["rowId"] = "1"
	row["_index"] = "1"
	allocJSON, err := json.Marshal([]map[string]any{row})
	if err != nil {
		return nil, fmt.Errorf("encode alloc details: %w", err)
	}
	form := url.Values{}
	form.Set("vasSave", string(vasJSON))
	form.Set("allocDetails", string(allocJSON))
	form.Set("allocateInWh", `""`)
	form.Set("soNos", "")
	return form, nil
}

// Ship dispatches one candidate. selfPickup selects the self-pickup VAS with
// no carrier; otherwise the configured carrier is used with an empty tracking
// number.
func (s *Shipper) Ship(ctx context.Context, cand fulfillment.ShipmentCandidate, customerName string, selfPickup bool) fulfillment.ShipResult {
	ctx = services.WithSN(ctx, cand.InvSN)
	logger := logging.WithContext(ctx, s.logger).With(logging.SONo(cand.SONo))

	result := fulfillment.ShipResult{
		SN:           cand.InvSN,
		SONo:         cand.SONo,
		CustomerName: customerName,
		SelfPickup:   selfPickup,
	}
	displayName := customerName
	if displayName == "" {
		displayName = UnknownCustomer
	}
	if selfPickup {
		result.Message = "self-pickup: " + displayName
	} else {
		result.Message = "carrier: " + displayName
	}

	form, err := s.BuildShipForm(cand, selfPickup)
	if err != nil {
		return s.shipFailed(logger, result, "ship failed: "+err.Error(), services.Wrap(services.ErrValidation, System, "ship", "build form", err))
	}

	var payload shipResponse
	if _, err := s.session.PostFormJSON(ctx, shipPath, form, &payload); err != nil {
		return s.shipFailed(logger, result, "ship failed: "+err.Error(), err)
	}
	if !payload.Success {
		msg := strings.TrimSpace(payload.Msg)
		if msg == "" {
			msg = "unknown error"
		}
		return s.shipFailed(logger, result, "ship failed: "+msg, services.Wrap(services.ErrBackend, System, "ship", msg, nil))
	}

	result.Success = true
	result.ShippedAt = s.now()
	logger.Info("shipment dispatched",
		logging.String(logging.FieldEventType, "ship_succeeded"),
		logging.Bool("self_pickup", selfPickup),
		logging.String("customer", displayName),
	)
	return result
}

func (s *Shipper) shipFailed(logger *slog.Logger, result fulfillment.ShipResult, message string, err error) fulfillment.ShipResult {
	result.Success = false
	result.Message = message
	result.Err = err
	logging.WarnWithContext(logger, "shipment failed", "ship_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "dispatch the order manually or wait for the next run"),
		logging.String(logging.FieldImpact, "order stays pending on the logistics system"),
	)
	return result
}

// ShipBatch dispatches candidates in order. The customer name comes from names
// keyed by invSn; a missing name ships by carrier as UnknownCustomer.
func (s *Shipper) ShipBatch(ctx context.Context, cands []fulfillment.ShipmentCandidate, names map[string]string) []fulfillment.ShipResult {
	logger := logging.WithContext(ctx, s.logger)
	results := make([]fulfillment.ShipResult, 0, len(cands))
	for idx, cand := range cands {
		name, ok := names[cand.InvSN]
		if !ok || strings.TrimSpace(name) == "" {
			name = UnknownCustomer
		}
		selfPickup := name != UnknownCustomer && s.IsSelfPickup(name)
		logger.Debug("shipping sn",
			logging.SN(cand.InvSN),
			logging.Int("index", idx+1),
			logging.Int("total", len(cands)),
		)
		results = append(results, s.Ship(ctx, cand, name, selfPickup))
	}

	shipped, selfPickups := 0, 0
	for _, r := range results {
		if r.Success {
			shipped++
			if r.SelfPickup {
				selfPickups++
			}
		}
	}
	logger.Info("ship batch complete",
		logging.String(logging.FieldEventType, "ship_batch_complete"),
		logging.String("result", fmt.Sprintf("success %d/%d", shipped, len(cands))),
		logging.Int("self_pickup", selfPickups),
		logging.Int("carrier", shipped-selfPickups),
		logging.Int("failed", len(cands)-shipped),
	)
	return results
}
