package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"fulfill/internal/fulfillment"
)

// OCR endpoint paths served by Backend.
const (
	TokenPath = "/oauth/2.0/token"
	OCRPath   = "/rest/2.0/ocr/v1/general_basic"
)

// Backend is a scriptable fake of the work-order tracker, the warehouse
// system, the logistics system, and the OCR service, all on one server. The
// warehouse and logistics logins share a path and are told apart by the
// authCode field the logistics client sends.
type Backend struct {
	server *httptest.Server

	mu sync.Mutex

	// CaptchaText is what OCR returns for every captcha.
	CaptchaText string
	// WorkOrderLoginCode is the code returned by the tracker login.
	WorkOrderLoginCode string
	// WMSLoginOK and LogisticsLoginOK control the form logins.
	WMSLoginOK       bool
	LogisticsLoginOK bool
	// Exports holds the GBK body served per category; ExportStatus overrides
	// the status code when non-zero.
	Exports      map[fulfillment.Category][]byte
	ExportStatus int
	// SKUs maps SN to the raw data returned by the SKU query. Unknown SNs
	// return null.
	SKUs map[string]string
	// ConfirmFail lists SNs whose pick confirmation is rejected.
	ConfirmFail map[string]bool
	// Pending is served as pending-shipment rows, ten per page.
	Pending []map[string]any
	// ShipFail lists order numbers whose dispatch is rejected.
	ShipFail map[string]bool

	calls     map[string]int
	shipForms []url.Values
	nextSO    int
}

// NewBackend starts a fake backend that accepts every login and serves empty
// exports.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		CaptchaText:        "ab12",
		WorkOrderLoginCode: "0",
		WMSLoginOK:         true,
		LogisticsLoginOK:   true,
		Exports:            map[fulfillment.Category][]byte{},
		SKUs:               map[string]string{},
		ConfirmFail:        map[string]bool{},
		ShipFail:           map[string]bool{},
		calls:              map[string]int{},
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the base URL of the fake.
func (b *Backend) URL() string { return b.server.URL }

// Close stops the server early, for transport failure tests.
func (b *Backend) Close() { b.server.Close() }

// Calls returns how often the named endpoint was hit. Names: captcha,
// workorder_login, validity, export, token, ocr, wms_login, logistics_login,
// query_sku, create_order, pick_detail, confirm_pick, collect, query, ship.
func (b *Backend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

// ShipForms returns the dispatch forms received so far.
func (b *Backend) ShipForms() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.shipForms...)
}

// Update runs fn with the backend locked so tests can change the script
// while the server is live.
func (b *Backend) Update(fn func(*Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *Backend) hit(name string) {
	b.mu.Lock()
	b.calls[name]++
	b.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(TokenPath, func(w http.ResponseWriter, r *http.Request) {
		b.hit("token")
		writeJSON(w, map[string]any{"access_token": "fake-token", "expires_in": 2592000})
	})
	mux.HandleFunc(OCRPath, func(w http.ResponseWriter, r *http.Request) {
		b.hit("ocr")
		b.mu.Lock()
		text := b.CaptchaText
		b.mu.Unlock()
		writeJSON(w, map[string]any{"words_result": []map[string]string{{"words": text}}, "words_result_num": 1})
	})

	mux.HandleFunc("/index.php/Public/getImgCode.html", func(w http.ResponseWriter, r *http.Request) {
		b.hit("captcha")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake captcha"))
	})
	mux.HandleFunc("/index.php/Public/login.html", func(w http.ResponseWriter, r *http.Request) {
		b.hit("workorder_login")
		b.mu.Lock()
		code := b.WorkOrderLoginCode
		b.mu.Unlock()
		if code == "0" {
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "wo-session", Path: "/"})
			writeJSON(w, map[string]any{"code": 0, "msg": "ok"})
			return
		}
		writeJSON(w, map[string]any{"code": code, "msg": "验证码错误"})
	})
	mux.HandleFunc("/index.php/Order/order/status/120.html", func(w http.ResponseWriter, r *http.Request) {
		b.hit("validity")
		if c, err := r.Cookie("PHPSESSID"); err == nil && c.Value == "wo-session" {
			_, _ = w.Write([]byte("<html><title>服务工单</title></html>"))
			return
		}
		http.Redirect(w, r, "/index.php/Public/login.html", http.StatusFound)
	})
	mux.HandleFunc("/index.php/Order/exportorder.html", func(w http.ResponseWriter, r *http.Request) {
		b.hit("export")
		category := fulfillment.CategoryMachine
		if r.URL.Query().Get("innertype") == "2" {
			category = fulfillment.CategoryBoard
		}
		b.mu.Lock()
		status := b.ExportStatus
		body := b.Exports[category]
		b.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		_, _ = w.Write(body)
	})

	mux.HandleFunc("/wms-web/security/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		_, logistics := r.PostForm["authCode"]
		b.mu.Lock()
		ok := b.WMSLoginOK
		name := "wms_login"
		if logistics {
			ok = b.LogisticsLoginOK
			name = "logistics_login"
		}
		b.calls[name]++
		b.mu.Unlock()
		if !ok {
			writeJSON(w, map[string]any{"success": false, "msg": "用户名或密码错误"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: name, Path: "/"})
		writeJSON(w, map[string]any{"success": true})
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/querySoSkuBySn", func(w http.ResponseWriter, r *http.Request) {
		b.hit("query_sku")
		payload := formData(r)
		sn, _ := payload["snCode"].(string)
		b.mu.Lock()
		data, ok := b.SKUs[sn]
		b.mu.Unlock()
		if !ok {
			data = "null"
		}
		writeJSON(w, map[string]any{"success": ok, "data": json.RawMessage(data)})
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/saveWmsSoOrder", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls["create_order"]++
		b.nextSO++
		soNo := fmt.Sprintf("SO%04d", b.nextSO)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"success": true, "data": soNo})
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/WMSRF_PK_QueryPickDetail", func(w http.ResponseWriter, r *http.Request) {
		b.hit("pick_detail")
		writeJSON(w, map[string]any{"success": true, "data": []any{}})
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/pickBySnCode", func(w http.ResponseWriter, r *http.Request) {
		b.hit("confirm_pick")
		payload := formData(r)
		sn, _ := payload["snCode"].(string)
		b.mu.Lock()
		fail := b.ConfirmFail[sn]
		b.mu.Unlock()
		if fail {
			writeJSON(w, map[string]any{"success": false, "msg": "库存不足"})
			return
		}
		writeJSON(w, map[string]any{"success": true})
	})

	mux.HandleFunc("/wms-web/oubweb/outboundSoController/collectSoOrderGroupByStatus.shtml", func(w http.ResponseWriter, r *http.Request) {
		b.hit("collect")
		writeJSON(w, map[string]any{"success": true})
	})
	mux.HandleFunc("/wms-web/oubweb/outboundSoController/query.shtml", func(w http.ResponseWriter, r *http.Request) {
		b.hit("query")
		page, _ := strconv.Atoi(r.URL.Query().Get("page.currentPage"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("page.limitCount"))
		if limit <= 0 {
			limit = 10
		}
		b.mu.Lock()
		start := (page - 1) * limit
		rows := []map[string]any{}
		if page >= 1 && start < len(b.Pending) {
			end := min(start+limit, len(b.Pending))
			rows = append(rows, b.Pending[start:end]...)
		}
		total := len(b.Pending)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"rows": rows, "total": total})
	})
	mux.HandleFunc("/wms-web/oubweb/outboundShippmentController/shipmentByAllocListNew.shtml", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		var alloc []map[string]any
		_ = json.Unmarshal([]byte(r.PostForm.Get("allocDetails")), &alloc)
		soNo := ""
		if len(alloc) > 0 {
			soNo, _ = alloc[0]["soNo"].(string)
		}
		b.mu.Lock()
		b.calls["ship"]++
		b.shipForms = append(b.shipForms, r.PostForm)
		fail := b.ShipFail[soNo]
		b.mu.Unlock()
		if fail {
			writeJSON(w, map[string]any{"success": false, "msg": "出库单状态异常"})
			return
		}
		writeJSON(w, map[string]any{"success": true})
	})
	return mux
}

func formData(r *http.Request) map[string]any {
	_ = r.ParseForm()
	payload := map[string]any{}
	_ = json.Unmarshal([]byte(r.PostForm.Get("data")), &payload)
	return payload
}

// PendingRow builds a pending-shipment row.
func PendingRow(soNo, sn string) map[string]any {
	return map[string]any{
		"soNo":    soNo,
		"invSn":   sn,
		"skuCode": "SKU-" + sn,
		"status":  "60",
	}
}
