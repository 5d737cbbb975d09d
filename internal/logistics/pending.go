package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/services"
	"fulfill/internal/session"
)

const (
	queryPath = "/wms-web/oubweb/outboundSoController/query.shtml"

	// MaxPages bounds pagination in case the backend never returns an empty page.
	MaxPages = 100

	pageSize        = 10
	queryTimeLayout = "2006-01-02 15:04:05"
	orderStatuses   = "00,10,20,30,40,50,60,70,80"
	wsdStatuses     = "60,70,50"

	// DefaultDaysBack is used when the caller passes a non-positive window.
	DefaultDaysBack = 29
)

// Window returns the order-time range for a pending query: midnight daysBack
// days before now through 23:59:29 today.
func Window(now time.Time, daysBack int) (time.Time, time.Time) {
	y, m, d := now.Date()
	end := time.Date(y, m, d, 23, 59, 29, 0, now.Location())
	sy, sm, sd := now.AddDate(0, 0, -daysBack).Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, now.Location())
	return start, end
}

// QueryParams builds the pending-shipment filter for one page. Every filter the
// backend expects is present, most of them empty.
func QueryParams(start, end time.Time, page int) url.Values {
	params := url.Values{}
	for _, key := range []string{
		"soNo", "workOrderNo", "omsOrderNo", "soType", "skuBrand",
		"tpyeCode", "ownerName", "ownerCode", "skuName", "skuCode",
		"logisticNo", "carrierName", "carrierCode", "shipperWh",
		"lotAtt13", "printStatus", "pickNo",
	} {
		params.Set(key, "")
	}
	params.Set("orderTimeFm", start.Format(queryTimeLayout))
	params.Set("orderTimeTo", end.Format(queryTimeLayout))
	params.Set("status", orderStatuses)
	params.Set("wsdStatus", wsdStatuses)
	params.Set("page.currentPage", strconv.Itoa(page))
	params.Set("page.limitCount", strconv.Itoa(pageSize))
	return params
}

type queryResponse struct {
	Rows []map[string]any `json:"rows"`
}

// GetPending pages through pending shipments. On a transport or decode failure
// it returns the rows gathered so far together with the error.
func (s *Shipper) GetPending(ctx context.Context, daysBack int) ([]fulfillment.ShipmentCandidate, error) {
	if daysBack <= 0 {
		daysBack = s.daysBack
	}
	logger := logging.WithContext(ctx, s.logger)
	start, end := Window(s.now(), daysBack)

	var candidates []fulfillment.ShipmentCandidate
	for page := 1; ; page++ {
		if page > MaxPages {
			logging.WarnWithContext(logger, "pending query hit page cap", "pending_page_cap",
				logging.Int("max_pages", MaxPages),
				logging.Int("rows", len(candidates)),
				logging.String(logging.FieldImpact, "later pages are skipped until the next run"),
				logging.String(logging.FieldErrorHint, "check the backend for a runaway result set"),
			)
			break
		}
		rows, err := s.fetchPage(ctx, QueryParams(start, end, page))
		if err != nil {
			logging.WarnWithContext(logger, "pending query stopped early", "pending_query_failed",
				logging.Int("page", page),
				logging.Int("rows", len(candidates)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "only rows from earlier pages are shipped"),
			)
			return candidates, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			candidates = append(candidates, candidateFromRow(row))
		}
	}

	logger.Info("pending shipments loaded",
		logging.String(logging.FieldEventType, "pending_loaded"),
		logging.Int("rows", len(candidates)),
		logging.String("from", start.Format(queryTimeLayout)),
		logging.String("to", end.Format(queryTimeLayout)),
	)
	return candidates, nil
}

func (s *Shipper) fetchPage(ctx context.Context, params url.Values) ([]map[string]any, error) {
	// The list query only returns rows after the aggregate has been requested
	// for the same filter in this session.
	if _, err := s.session.PostForm(ctx, collectPath, params); err != nil {
		return nil, err
	}
	resp, err := s.session.Get(ctx, queryPath, params)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, services.Wrap(services.ErrTransport, System, "query", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	var payload queryResponse
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrBackend, System, "query", "decode rows", err)
	}
	return payload.Rows, nil
}

func candidateFromRow(row map[string]any) fulfillment.ShipmentCandidate {
	return fulfillment.ShipmentCandidate{
		SONo:  rowString(row, "soNo"),
		InvSN: rowString(row, "invSn"),
		Row:   row,
	}
}

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Shipper queries and dispatches pending shipments.
type Shipper struct {
	session     *session.Session
	carrierName string
	carrierCode string
	staff       map[string]struct{}
	daysBack    int
	logger      *slog.Logger
	now         func() time.Time
}

// ShipperOptions configures a Shipper.
type ShipperOptions struct {
	DaysBack        int
	CarrierName     string
	CarrierCode     string
	SelfPickupStaff []string
	Now             func() time.Time
}

// NewShipper returns a Shipper bound to an authenticated logistics session.
func NewShipper(sess *session.Session, opts ShipperOptions, logger *slog.Logger) *Shipper {
	s := &Shipper{
		session:     sess,
		carrierName: strings.TrimSpace(opts.CarrierName),
		carrierCode: strings.TrimSpace(opts.CarrierCode),
		staff:       StaffSet(opts.SelfPickupStaff),
		daysBack:    opts.DaysBack,
		logger:      logging.NewComponentLogger(logger, "shipping").With(logging.System(System)),
		now:         opts.Now,
	}
	if s.daysBack <= 0 {
		s.daysBack = DefaultDaysBack
	}
	if s.carrierName == "" {
		s.carrierName = DefaultCarrierName
	}
	if s.carrierCode == "" {
		s.carrierCode = DefaultCarrierCode
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// StaffSet trims names and drops empties.
func StaffSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// IsSelfPickup reports whether name belongs to the self-pickup staff.
func (s *Shipper) IsSelfPickup(name string) bool {
	if name == "" {
		return false
	}
	_, ok := s.staff[name]
	return ok
}
