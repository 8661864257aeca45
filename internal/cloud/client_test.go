package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const testToken = "test-access-token"

// newTestServer serves fixed bodies per path and records the last
// Authorization header seen.
func newTestServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*Client, *string) {
	t.Helper()

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewStatic(srv.URL, testToken, time.Second, nil)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	return c, &auth
}

func body(s string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(s))
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := NewStatic("https://api.example.com", "", 0, nil); !errors.Is(err, ErrMissingToken) {
		t.Errorf("NewStatic(no token) error = %v, want ErrMissingToken", err)
	}
	if _, err := New(Options{BaseURL: "not a url", Tokens: StaticTokens("x")}); err == nil {
		t.Error("New(bad url) expected error")
	}
}

func TestGetTasks(t *testing.T) {
	var query string
	c, auth := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		pathTasks: func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			body(`{"total":2,"hits":[
				{"id":12345,"title":"benchy","cover":"https://cdn/1.png"},
				{"id":"abc","designTitle":"cube"}
			]}`)(w, r)
		},
	})

	tasks, err := c.GetTasks(context.Background(), "01S00C123456789", 10)
	if err != nil {
		t.Fatalf("GetTasks() error = %v", err)
	}
	if *auth != "Bearer "+testToken {
		t.Errorf("Authorization = %q", *auth)
	}
	if !strings.Contains(query, "deviceId=01S00C123456789") || !strings.Contains(query, "limit=10") {
		t.Errorf("query = %q", query)
	}
	if len(tasks) != 2 {
		t.Fatalf("GetTasks() = %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "12345" || tasks[0].Name != "benchy" || tasks[0].Cover != "https://cdn/1.png" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if tasks[1].ID != "abc" || tasks[1].Name != "cube" {
		t.Errorf("tasks[1] = %+v", tasks[1])
	}
}

func TestAPIErrors(t *testing.T) {
	c, _ := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		pathTasks: body(`{"error":"device not bound"}`),
		pathProfile: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{}`))
		},
		pathDevices: body(`not json`),
	})
	ctx := context.Background()

	if _, err := c.GetTasks(ctx, "x", 10); !errors.Is(err, ErrAPI) {
		t.Errorf("GetTasks() error = %v, want ErrAPI", err)
	}
	if _, err := c.GetProfile(ctx); !errors.Is(err, ErrHTTP) {
		t.Errorf("GetProfile() error = %v, want ErrHTTP", err)
	}
	if _, err := c.GetDevices(ctx); err == nil {
		t.Error("GetDevices() expected decode error")
	}
}

func TestGetProfileAndDevices(t *testing.T) {
	c, _ := newTestServer(t, map[string]func(http.ResponseWriter, *http.Request){
		pathProfile: body(`{"uid":1234567,"name":"maker"}`),
		pathDevices: body(`{"message":"success","devices":[
			{"dev_id":"01S00C123456789","name":"P1S","online":true,"dev_model_name":"C12","dev_product_name":"P1S"}
		]}`),
	})
	ctx := context.Background()

	p, err := c.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.UID != "1234567" {
		t.Errorf("UID = %q, want 1234567", p.UID)
	}

	devices, err := c.GetDevices(ctx)
	if err != nil {
		t.Fatalf("GetDevices() error = %v", err)
	}
	if len(devices) != 1 || devices[0].DevID != "01S00C123456789" || !devices[0].Online {
		t.Errorf("devices = %+v", devices)
	}
}

func TestFetchBinary(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path == "/missing.png" {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	c, err := NewStatic("https://api.example.com", testToken, time.Second, nil)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}

	data, err := c.FetchBinary(context.Background(), srv.URL+"/cover.png")
	if err != nil {
		t.Fatalf("FetchBinary() error = %v", err)
	}
	if string(data) != "\x89PNG" {
		t.Errorf("FetchBinary() = %q", data)
	}
	if auth != "" {
		t.Errorf("cover download sent Authorization %q", auth)
	}

	if _, err := c.FetchBinary(context.Background(), srv.URL+"/missing.png"); !errors.Is(err, ErrHTTP) {
		t.Errorf("FetchBinary(missing) error = %v, want ErrHTTP", err)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, %v; want %v, true", got, ok, exp)
	}
	if _, ok := TokenExpiry("opaque-token"); ok {
		t.Error("TokenExpiry(opaque) ok = true")
	}
}

func TestCredentialSource(t *testing.T) {
	ctx := context.Background()

	src := NewCredentialSource("1234567", StaticTokens("opaque"))
	creds, err := src.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Username != "u_1234567" || creds.Password != "opaque" {
		t.Errorf("Credentials() = %+v", creds)
	}

	expired := NewCredentialSource("1234567", StaticTokens(signedToken(t, time.Now().Add(-time.Minute))))
	if _, err := expired.Credentials(ctx); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Credentials(expired) error = %v, want ErrTokenExpired", err)
	}

	empty := NewCredentialSource("1", oauth2.StaticTokenSource(&oauth2.Token{}))
	if _, err := empty.Credentials(ctx); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Credentials(empty) error = %v, want ErrMissingToken", err)
	}
}
