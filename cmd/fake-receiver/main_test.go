package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/signature"
)

func TestVerifyRequest(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":{"type":"sale.approved"},"deliveryId":"dl-1"}`)
	validSig := signature.Sign(body, secret)

	tests := []struct {
		name        string
		secret      string
		body        []byte
		sig         string
		expectValid bool
		expectedMsg string
	}{
		{
			name:        "valid signature",
			secret:      secret,
			body:        body,
			sig:         validSig,
			expectValid: true,
		},
		{
			name:        "missing signature",
			secret:      secret,
			body:        body,
			sig:         "",
			expectValid: false,
			expectedMsg: "missing signature header",
		},
		{
			name:        "signature mismatch",
			secret:      secret,
			body:        body,
			sig:         "sha256=deadbeef",
			expectValid: false,
			expectedMsg: "sig mismatch",
		},
		{
			name:        "wrong secret",
			secret:      "whsec_other",
			body:        body,
			sig:         validSig,
			expectValid: false,
			expectedMsg: "sig mismatch",
		},
		{
			name:        "tampered body",
			secret:      secret,
			body:        []byte(`{"event":{"type":"sale.refunded"}}`),
			sig:         validSig,
			expectValid: false,
			expectedMsg: "sig mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := verifyRequest(tt.secret, tt.body, tt.sig)
			if ok != tt.expectValid {
				t.Errorf("verifyRequest() ok = %v, want %v", ok, tt.expectValid)
			}
			if !tt.expectValid && msg != tt.expectedMsg {
				t.Errorf("verifyRequest() msg = %q, want %q", msg, tt.expectedMsg)
			}
		})
	}
}

func TestHandleHookFailureInjection(t *testing.T) {
	rc := &receiver{
		cfg:    config.Receiver{FailFirstN: 2, FailStatus: http.StatusInternalServerError},
		sigHdr: "X-Utmify-Signature",
	}

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		rc.handleHook(rec, req)
		statuses = append(statuses, rec.Code)
	}

	want := []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusOK}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i+1, statuses[i], want[i])
		}
	}
}

func TestHandleHookRejectsUnsigned(t *testing.T) {
	rc := &receiver{
		cfg:    config.Receiver{Secret: "whsec_test", FailStatus: http.StatusInternalServerError},
		sigHdr: "X-Utmify-Signature",
	}

	body := []byte(`{"event":{"type":"sale.approved"}}`)

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	rc.handleHook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned request status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "missing signature header") {
		t.Errorf("body = %q, want missing-signature message", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("X-Utmify-Signature", signature.Sign(body, "whsec_test"))
	rec = httptest.NewRecorder()
	rc.handleHook(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed request status = %d, want %d", rec.Code, http.StatusOK)
	}
}
