// Package testutil provides shared HTTP fakes and key fixtures for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// Key is a throwaway private key used across tests. It controls no funds.
const Key = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// KeyAddress is the address derived from Key.
const KeyAddress = "0x96216849c49358B10257cb55b28eA603c874b05E"

// Facilitator is a scripted in-process facilitator. Zero value verifies and
// settles everything; flip the fields to script rejections.
type Facilitator struct {
	Server *httptest.Server

	VerifyCalls atomic.Int32
	SettleCalls atomic.Int32

	InvalidReason string // non-empty: verification rejects with this reason
	SettleReason  string // non-empty: settlement fails with this reason
	Payer         string
	Transaction   string
}

// StartFacilitator spins up the fake and registers its shutdown with t.
func StartFacilitator(t *testing.T) *Facilitator {
	t.Helper()
	f := &Facilitator{Payer: KeyAddress, Transaction: "0xsettled"}

	f.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			f.VerifyCalls.Add(1)
			json.NewEncoder(rw).Encode(map[string]any{
				"isValid":       f.InvalidReason == "",
				"invalidReason": f.InvalidReason,
				"payer":         f.Payer,
			})
		case "/settle":
			f.SettleCalls.Add(1)
			json.NewEncoder(rw).Encode(map[string]any{
				"success":     f.SettleReason == "",
				"errorReason": f.SettleReason,
				"transaction": f.Transaction,
				"network":     "base-sepolia",
				"payer":       f.Payer,
			})
		default:
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the facilitator's base URL.
func (f *Facilitator) URL() string { return f.Server.URL }
