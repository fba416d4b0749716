package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/signature"
)

// receiver is a webhook sink for local end-to-end testing. It verifies the
// delivery signature when ENDPOINT_SECRET is set and can fail the first N
// requests (FAIL_FIRST_N / FAIL_STATUS) to exercise the retry path.
type receiver struct {
	cfg      config.Receiver
	sigHdr   string
	reqCount atomic.Int64
}

func main() {
	cfg := config.FromEnv()
	rcv := &receiver{cfg: cfg.Receiver, sigHdr: cfg.Delivery.SignatureHeader}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/hook", rcv.handleHook)

	srv := &http.Server{
		Addr:         cfg.Receiver.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Receiver.ReadTimeout,
		WriteTimeout: cfg.Receiver.WriteTimeout,
		IdleTimeout:  cfg.Receiver.IdleTimeout,
	}
	log.Printf("fake-receiver listening on %s", cfg.Receiver.Port)
	log.Fatal(srv.ListenAndServe())
}

func (rc *receiver) handleHook(w http.ResponseWriter, r *http.Request) {
	n := rc.reqCount.Add(1)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if rc.cfg.Secret != "" {
		sig := r.Header.Get(rc.sigHdr)
		if ok, msg := verifyRequest(rc.cfg.Secret, body, sig); !ok {
			log.Printf("fake-receiver rejected delivery: %s", msg)
			http.Error(w, "invalid signature: "+msg, http.StatusUnauthorized)
			return
		}
	}

	if rc.cfg.ResponseDelay > 0 {
		time.Sleep(rc.cfg.ResponseDelay)
	}

	// Simulate flakiness: first N requests fail with the configured status
	if n <= int64(rc.cfg.FailFirstN) {
		log.Printf("FAILING (%d/%d) status=%d body=%s", n, rc.cfg.FailFirstN,
			rc.cfg.FailStatus, truncate(string(body), 160))
		http.Error(w, "injected failure", rc.cfg.FailStatus)
		return
	}

	log.Printf("fake-receiver OK %s body=%q", r.URL.Path, truncate(string(body), 160))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`ok`))
}

// verifyRequest checks the signature header against the exact body bytes.
func verifyRequest(secret string, body []byte, sig string) (bool, string) {
	if sig == "" {
		return false, "missing signature header"
	}
	if !signature.Verify(body, sig, secret) {
		return false, "sig mismatch"
	}
	return true, ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
