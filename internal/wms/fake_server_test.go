package wms_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fulfill/internal/session"
	"fulfill/internal/wms"
)

// warehouseServer fakes the wms-web endpoints. Responses are keyed by SN so a
// single server can drive mixed batches.
type warehouseServer struct {
	mu sync.Mutex

	loginOK    bool
	loginForms []map[string]string

	// skuData maps SN to the raw data returned by querySoSkuBySn.
	skuData map[string]string
	// createData is returned by saveWmsSoOrder; defaults to a string order number.
	createData string
	// pickDetail is the raw body for WMSRF_PK_QueryPickDetail.
	pickDetail string
	// confirmOK controls pickBySnCode.
	confirmOK bool

	calls    map[string]int
	payloads map[string][]map[string]any
}

func newWarehouseServer() *warehouseServer {
	return &warehouseServer{
		loginOK:    true,
		skuData:    map[string]string{},
		createData: `"SO0001"`,
		pickDetail: `{"success":true,"data":[{"id":1}]}`,
		confirmOK:  true,
		calls:      map[string]int{},
		payloads:   map[string][]map[string]any{},
	}
}

func (s *warehouseServer) record(r *http.Request, name string) map[string]any {
	_ = r.ParseForm()
	payload := map[string]any{}
	if raw := r.PostForm.Get("data"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &payload)
	}
	s.mu.Lock()
	s.calls[name]++
	s.payloads[name] = append(s.payloads[name], payload)
	s.mu.Unlock()
	return payload
}

func (s *warehouseServer) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *warehouseServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wms-web/security/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		s.mu.Lock()
		s.loginForms = append(s.loginForms, form)
		ok := s.loginOK
		s.mu.Unlock()
		if ok {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"msg":"bad password"}`))
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/querySoSkuBySn", func(w http.ResponseWriter, r *http.Request) {
		payload := s.record(r, "query")
		sn, _ := payload["snCode"].(string)
		s.mu.Lock()
		data, ok := s.skuData[sn]
		s.mu.Unlock()
		if !ok {
			data = "null"
		}
		_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/saveWmsSoOrder", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "create")
		s.mu.Lock()
		data := s.createData
		s.mu.Unlock()
		_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/WMSRF_PK_QueryPickDetail", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "detail")
		s.mu.Lock()
		body := s.pickDetail
		s.mu.Unlock()
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/wms-web/rfweb/rfController/pickBySnCode", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "confirm")
		s.mu.Lock()
		ok := s.confirmOK
		s.mu.Unlock()
		if ok {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"msg":"sn already picked"}`))
	})
	return mux
}

func startWarehouse(t *testing.T, fake *warehouseServer) (*httptest.Server, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	sess, err := wms.NewSession(wms.System, srv.URL, session.NewCookieStore(t.TempDir()+"/asd.json"))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return srv, sess
}

func hasPrefix(s, prefix string) bool { return strings.HasPrefix(s, prefix) }
