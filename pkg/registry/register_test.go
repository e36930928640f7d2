package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
)

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient(srvURL, Credentials{APIKey: "test-key"}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	c.registerWait = 5 * time.Millisecond
	return c
}

func makeSkills(t *testing.T, names ...string) model.Skills {
	t.Helper()
	skills := model.Skills{}
	for _, name := range names {
		s, err := model.NewSkill(name, model.SkillOptions{Price: "$0.01"}, func(_ context.Context, in map[string]any) (any, error) {
			return in, nil
		})
		if err != nil {
			t.Fatalf("NewSkill(%q) returned error: %v", name, err)
		}
		skills[name] = s
	}
	return skills
}

// TestNewClient_HTTPSEnforcement verifies that plain-http registries are
// rejected unless the host is loopback.
func TestNewClient_HTTPSEnforcement(t *testing.T) {
	if _, err := NewClient("http://registry.example.com", Credentials{}, time.Second); err == nil {
		t.Fatal("expected HTTPS error for non-loopback http URL")
	}
	if _, err := NewClient("http://localhost:3000", Credentials{}, time.Second); err != nil {
		t.Fatalf("localhost exception rejected: %v", err)
	}
	if _, err := NewClient("https://registry.example.com", Credentials{}, time.Second); err != nil {
		t.Fatalf("https URL rejected: %v", err)
	}
}

// TestRegister_RetriesOn429 verifies that a 429,429,201 sequence yields one
// successful result after two backoff delays.
func TestRegister_RetriesOn429(t *testing.T) {
	var mu sync.Mutex
	var attempts int
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		stamps = append(stamps, time.Now())
		mu.Unlock()
		if n < 3 {
			rw.WriteHeader(http.StatusTooManyRequests)
			return
		}
		rw.WriteHeader(http.StatusCreated)
		json.NewEncoder(rw).Encode(map[string]string{"slug": "echo-abc"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.Register(context.Background(), makeSkills(t, "echo"), RegisterOptions{
		Endpoint:       "https://skills.example.com",
		PaymentAddress: "0x94d04332C4f5273feF69c4a52D24f42a3aF1F207",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if len(results) != 1 || !results[0].Success || results[0].Slug != "echo-abc" {
		t.Fatalf("results = %+v", results)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	// The second retry waits roughly twice the first; just ensure both
	// backoffs actually slept.
	if stamps[1].Sub(stamps[0]) < 4*time.Millisecond || stamps[2].Sub(stamps[1]) < 8*time.Millisecond {
		t.Fatalf("backoff delays too short: %v, %v", stamps[1].Sub(stamps[0]), stamps[2].Sub(stamps[1]))
	}
}

// TestRegister_NoRetryOn400 verifies that a client error fails immediately
// with zero retries.
func TestRegister_NoRetryOn400(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		attempts++
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "name already taken"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.Register(context.Background(), makeSkills(t, "echo"), RegisterOptions{
		Endpoint: "https://skills.example.com",
		OnError:  ErrorModeSilent,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on 400)", attempts)
	}
	if results[0].Success || results[0].Err == nil {
		t.Fatalf("result = %+v, want failure carrying last error", results[0])
	}
}

// TestRegister_PositionalResults verifies that with concurrency 2 and 5
// skills every result lands at the index of its skill in sorted name order.
func TestRegister_PositionalResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		// Shuffle completion order a little.
		if payload.Name == "a" || payload.Name == "c" {
			time.Sleep(20 * time.Millisecond)
		}
		rw.WriteHeader(http.StatusCreated)
		json.NewEncoder(rw).Encode(map[string]string{"slug": payload.Name + "-slug"})
	}))
	defer srv.Close()

	names := []string{"a", "b", "c", "d", "e"}
	c := newTestClient(t, srv.URL)
	results, err := c.Register(context.Background(), makeSkills(t, names...), RegisterOptions{
		Endpoint:    "https://skills.example.com",
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for i, name := range names {
		if results[i].Name != name {
			t.Fatalf("results[%d].Name = %q, want %q", i, results[i].Name, name)
		}
		if !results[i].Success || results[i].Slug != name+"-slug" {
			t.Fatalf("results[%d] = %+v", i, results[i])
		}
	}
}

// TestRegister_GroupValidationBeforeNetwork verifies the fail-fast batch
// group check.
func TestRegister_GroupValidationBeforeNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls++
		rw.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	// Throw mode aborts.
	_, err := c.Register(context.Background(), makeSkills(t, "echo"), RegisterOptions{
		Endpoint:      "https://skills.example.com",
		RequireGroups: true,
		OnError:       ErrorModeThrow,
	})
	if err == nil {
		t.Fatal("expected batch validation error in throw mode")
	}

	// Silent mode returns failed results without raising.
	results, err := c.Register(context.Background(), makeSkills(t, "echo"), RegisterOptions{
		Endpoint:      "https://skills.example.com",
		RequireGroups: true,
		OnError:       ErrorModeSilent,
	})
	if err != nil {
		t.Fatalf("silent mode raised: %v", err)
	}
	if results[0].Success || results[0].Err == nil {
		t.Fatalf("result = %+v", results[0])
	}

	if calls != 0 {
		t.Fatalf("registry was called %d times before validation", calls)
	}

	// A global group satisfies the requirement.
	results, err = c.Register(context.Background(), makeSkills(t, "echo"), RegisterOptions{
		Endpoint:      "https://skills.example.com",
		RequireGroups: true,
		Groups:        []string{"ai"},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("global group not applied: err=%v results=%+v", err, results)
	}
}

// TestRegister_ThrowModeAborts verifies that a hard failure in throw mode
// aborts the whole operation with an error.
func TestRegister_ThrowModeAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Register(context.Background(), makeSkills(t, "echo", "other"), RegisterOptions{
		Endpoint: "https://skills.example.com",
		OnError:  ErrorModeThrow,
	})
	if err == nil {
		t.Fatal("expected error in throw mode")
	}
}

// TestUpdateSkill_RevalidatesPrice verifies that a price update goes through
// the price parser before transmission.
func TestUpdateSkill_RevalidatesPrice(t *testing.T) {
	var sent SkillUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	bad := "not-a-price"
	if err := c.UpdateSkill(context.Background(), "echo-abc", SkillUpdate{Price: &bad}); err == nil {
		t.Fatal("expected error for malformed price update")
	}

	ok := "0.02 USDC"
	if err := c.UpdateSkill(context.Background(), "echo-abc", SkillUpdate{Price: &ok}); err != nil {
		t.Fatalf("UpdateSkill returned error: %v", err)
	}
	if sent.Price == nil || *sent.Price != "$0.02" {
		t.Fatalf("transmitted price = %v, want normalized $0.02", sent.Price)
	}
}

// TestPostReview_RequiresToken verifies the bearer-token requirement.
func TestPostReview_RequiresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			rw.WriteHeader(http.StatusUnauthorized)
			return
		}
		rw.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	noToken := newTestClient(t, srv.URL)
	if err := noToken.PostReview(context.Background(), model.Review{SkillSlug: "echo-abc", Score: 5}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}

	withToken, err := NewClient(srv.URL, Credentials{Token: "bearer-token"}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := withToken.PostReview(context.Background(), model.Review{SkillSlug: "echo-abc", Score: 5}); err != nil {
		t.Fatalf("PostReview returned error: %v", err)
	}
}
