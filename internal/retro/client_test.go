package retro_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"neon2retro/internal/payload"
	"neon2retro/internal/retro"
)

const sessionCookie = "ASP.NET_SessionId"

// fakeRetro serves the login endpoint and hands every other path to next.
func fakeRetro(t *testing.T, next http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/Authentication/AuthenticateUser", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("userName") != "alice" || r.URL.Query().Get("password") != "secret" {
			fmt.Fprint(w, `[{"response": false, "message": "Invalid credentials"}]`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "abc123", Path: "/"})
		fmt.Fprint(w, `[{"response": true}]`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL, password string) *retro.Client {
	t.Helper()

	c, err := retro.NewClient(retro.Config{
		BaseURL:  baseURL,
		Username: "alice",
		Password: password,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func samplePayload() *payload.Payload {
	return &payload.Payload{
		Data:        `{"ReferenceNumber":"NEON-1"}`,
		GSTData:     []string{`{"Rate":0}`, `{"Rate":3}`},
		CostData:    []string{`{"Name":"Cess"}`},
		MasterEdit:  "false",
		Reference:   "NEON-1",
		TotalAmount: decimal.NewFromInt(100),
	}
}

func TestAuthenticate(t *testing.T) {
	srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("valid credentials", func(t *testing.T) {
		c := newClient(t, srv.URL, "secret")
		if err := c.Authenticate(context.Background()); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if !c.Authenticated() {
			t.Error("client should report authenticated")
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		c := newClient(t, srv.URL, "wrong")
		err := c.Authenticate(context.Background())
		if !errors.Is(err, retro.ErrAuthenticationFailed) {
			t.Fatalf("Authenticate() error = %v, want ErrAuthenticationFailed", err)
		}
		if c.Authenticated() {
			t.Error("client should not report authenticated")
		}
	})
}

func TestAuthenticateNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL, "secret").Authenticate(context.Background())
	if !errors.Is(err, retro.ErrAuthenticationFailed) {
		t.Fatalf("Authenticate() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantOutcome retro.Outcome
		wantErr     error
	}{
		{"accepted", http.StatusOK, `[{"response": true, "message": "Saved"}]`, retro.Sent, nil},
		{"accepted created", http.StatusCreated, `[{"response": true}]`, retro.Sent, nil},
		{"accepted double encoded", http.StatusOK, `"[{\"response\": true}]"`, retro.Sent, nil},
		{"duplicate", http.StatusOK, `[{"response": false, "message": "A matching supplier reference number already exists"}]`, retro.Rejected, retro.ErrDuplicateReference},
		{"invalid operation", http.StatusOK, `[{"response": false, "message": "Invalid Operation"}]`, retro.Rejected, retro.ErrInvalidOperation},
		{"other rejection", http.StatusOK, `[{"response": false, "message": "nope"}]`, retro.Rejected, retro.ErrRejected},
		{"flag missing", http.StatusOK, `[{"message": "?"}]`, retro.Rejected, retro.ErrMalformedResponse},
		{"empty list", http.StatusOK, `[]`, retro.Rejected, retro.ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>oops</html>`, retro.Rejected, retro.ErrMalformedResponse},
		{"accepted other 2xx", http.StatusAccepted, `[{"response": true}]`, retro.Rejected, retro.ErrUnexpectedStatus},
		{"server error", http.StatusInternalServerError, `boom`, retro.TransportError, retro.ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			c := newClient(t, srv.URL, "secret")
			if err := c.Authenticate(context.Background()); err != nil {
				t.Fatal(err)
			}

			res := c.Submit(context.Background(), samplePayload())
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v (err %v)", res.Outcome, tt.wantOutcome, res.Err)
			}
			if tt.wantErr == nil && res.Err != nil {
				t.Errorf("unexpected error %v", res.Err)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
			if res.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.status)
			}
		})
	}
}

func TestSubmitSendsForm(t *testing.T) {
	srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/InvoiceManager/AddUpdateInvoice" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if len(r.PostForm["gstData"]) != 2 || len(r.PostForm["aCostData"]) != 1 {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.PostForm.Get("masterEdit") != "false" || r.PostForm.Get("data") == "" {
			t.Errorf("form = %v", r.PostForm)
		}
		fmt.Fprint(w, `[{"response": true}]`)
	})

	c := newClient(t, srv.URL, "secret")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if res := c.Submit(context.Background(), samplePayload()); !res.OK() {
		t.Fatalf("Submit() = %+v", res)
	}
}

func TestSubmitRequiresSession(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", "secret")

	res := c.Submit(context.Background(), samplePayload())
	if res.Outcome != retro.TransportError || !errors.Is(res.Err, retro.ErrNotAuthenticated) {
		t.Errorf("Submit() = %+v, want TransportError/ErrNotAuthenticated", res)
	}
}

func TestSubmitNetworkFailure(t *testing.T) {
	srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("hijacking unsupported")
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	})

	c := newClient(t, srv.URL, "secret")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if res := c.Submit(context.Background(), samplePayload()); res.Outcome != retro.TransportError {
		t.Errorf("Outcome = %v, want TransportError", res.Outcome)
	}
}

func TestVerify(t *testing.T) {
	srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `"{\"Data\": [{\"ReferenceNumber\": \"NEON-1\", \"TotalAmount\": 100.004, \"Status\": \"Pending\"}, {\"ReferenceNumber\": \"NEON-2\", \"TotalAmount\": \"55\"}]}"`)
	})

	c := newClient(t, srv.URL, "secret")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}

	v, err := c.Verify(context.Background(), "NEON-1", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !v.Matched || v.Status != "Pending" {
		t.Errorf("Verify() = %+v", v)
	}

	v, err = c.Verify(context.Background(), "NEON-2", decimal.NewFromInt(60))
	if !errors.Is(err, retro.ErrAmountMismatch) || v == nil || v.Matched {
		t.Errorf("Verify(NEON-2) = %+v, %v; want mismatch", v, err)
	}

	if _, err := c.Verify(context.Background(), "NEON-3", decimal.Zero); !errors.Is(err, retro.ErrNotFound) {
		t.Errorf("Verify(NEON-3) error = %v, want ErrNotFound", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := retro.NewClient(retro.Config{BaseURL: "not a url"}); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestSubmitDuringReauthentication(t *testing.T) {
	srv := fakeRetro(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"response": true}]`)
	})
	c := newClient(t, srv.URL, "secret")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	var wg sync.WaitGroup
	results := make([]retro.Result, 20)
	authErrs := make([]error, 20)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range results {
			results[i] = c.Submit(context.Background(), samplePayload())
		}
	}()
	go func() {
		defer wg.Done()
		for i := range authErrs {
			authErrs[i] = c.Authenticate(context.Background())
		}
	}()
	wg.Wait()

	for i, res := range results {
		if !res.OK() {
			t.Errorf("Submit #%d = %v (%v)", i, res.Outcome, res.Err)
		}
	}
	for i, err := range authErrs {
		if err != nil {
			t.Errorf("Authenticate #%d error = %v", i, err)
		}
	}
}
