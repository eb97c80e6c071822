package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-dynform"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/options/sqlsource"
)

func newTestServer(t *testing.T, cfg Config, fromDB bool) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("openRuntime: %v", err)
	}
	t.Cleanup(rt.Close)

	files, err := newFSForms(dynform.ExamplesFS(), "forms")
	if err != nil {
		t.Fatalf("newFSForms: %v", err)
	}
	var forms formStore = files
	if fromDB {
		if err := seed(ctx, rt, files); err != nil {
			t.Fatalf("seed: %v", err)
		}
		forms = sqlsource.NewForms(rt.db)
	}

	handler, err := newRouter(rt, forms, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func domainCodes(t *testing.T, url string) []string {
	t.Helper()
	var payload struct {
		Data []options.DomainValue `json:"data"`
	}
	if status := getJSON(t, url, &payload); status != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, status)
	}
	out := make([]string, 0, len(payload.Data))
	for _, v := range payload.Data {
		out = append(out, v.Code)
	}
	return out
}

func TestServeFormsAndDomainValues(t *testing.T) {
	srv := newTestServer(t, DefaultConfig(), false)

	if status := getJSON(t, srv.URL+"/healthz", nil); status != http.StatusOK {
		t.Fatalf("healthz status %d", status)
	}

	var form struct {
		Code string `json:"code"`
	}
	if status := getJSON(t, srv.URL+"/form/EMPLOYEE", &form); status != http.StatusOK {
		t.Fatalf("form status %d", status)
	}
	if form.Code != "EMPLOYEE" {
		t.Fatalf("unexpected form code %q", form.Code)
	}
	if status := getJSON(t, srv.URL+"/form/NOPE", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form, got %d", status)
	}

	if got := strings.Join(domainCodes(t, srv.URL+"/domain/STATE?parentCode=CA"), ","); got != "ON,QC" {
		t.Fatalf("unexpected states %q", got)
	}
}

func TestServeCompile(t *testing.T) {
	srv := newTestServer(t, DefaultConfig(), false)

	body := bytes.NewBufferString(`{"countryId": "CA"}`)
	res, err := http.Post(srv.URL+"/form/EMPLOYEE/compile", "application/json", body)
	if err != nil {
		t.Fatalf("POST compile: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		t.Fatalf("compile status %d: %s", res.StatusCode, raw)
	}

	var report formReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ID == "" || report.Code != "EMPLOYEE" {
		t.Fatalf("unexpected report header: id=%q code=%q", report.ID, report.Code)
	}
	if report.Paths["zip"] != "address.postal.zip" {
		t.Fatalf("unexpected zip path %q", report.Paths["zip"])
	}
	var states []string
	for _, v := range report.Options["stateId"] {
		states = append(states, v.Code)
	}
	if strings.Join(states, ",") != "ON,QC" {
		t.Fatalf("unexpected state options %v", states)
	}
	if st := report.States["stateId"]; st.Disabled {
		t.Fatal("state should be enabled once a country is set")
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), "dynform_option_cache_misses_total") {
		t.Fatalf("expected provider metrics, got:\n%s", raw)
	}
}

func TestServeFromDatabase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = ":memory:"
	srv := newTestServer(t, cfg, true)

	var form struct {
		Code string `json:"code"`
	}
	if status := getJSON(t, srv.URL+"/form/EMPLOYEE", &form); status != http.StatusOK {
		t.Fatalf("form status %d", status)
	}
	if form.Code != "EMPLOYEE" {
		t.Fatalf("unexpected form code %q", form.Code)
	}
	if got := strings.Join(domainCodes(t, srv.URL+"/domain/STATE?parentCode=US"), ","); got != "NY,WA" {
		t.Fatalf("unexpected states %q", got)
	}
	if status := getJSON(t, srv.URL+"/form/NOPE", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown form, got %d", status)
	}
}
