package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
)

// fakeResolver resolves credentials from a fixed table.
type fakeResolver struct {
	identities map[domain.Credential]*domain.Identity
	err        error

	mu    sync.Mutex
	calls int
}

func (r *fakeResolver) Resolve(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if id, ok := r.identities[cred]; ok {
		cp := *id
		return &cp, nil
	}
	return nil, nil
}

// traceStage records the before and after halves of its execution.
type traceStage struct {
	name  string
	trace *[]string
}

func (s *traceStage) Name() string { return s.name }

func (s *traceStage) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	*s.trace = append(*s.trace, "before:"+s.name)
	res, err := next(ctx, ec)
	*s.trace = append(*s.trace, "after:"+s.name)
	return res, err
}

// funcStage adapts a function to ports.Stage.
type funcStage struct {
	name string
	fn   func(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error)
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Process(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
	return s.fn(ctx, ec, inv, next)
}

// logBuffer is a concurrency-safe buffer for slog output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

var testMeta = domain.Metadata{ActionName: "test-action"}

func newTestClients(t *testing.T, resolver ports.SessionResolver, logger *slog.Logger) *Clients {
	t.Helper()
	clients, err := NewClients(ClientsConfig{Logger: logger, Resolver: resolver})
	if err != nil {
		t.Fatalf("NewClients() error = %v", err)
	}
	return clients
}

func standardResolver() *fakeResolver {
	return &fakeResolver{identities: map[domain.Credential]*domain.Identity{
		"admin-free":   {UserID: "a-1", Role: domain.RoleAdmin, Plan: domain.PlanFree},
		"admin-banned": {UserID: "a-2", Role: domain.RoleAdmin, Plan: domain.PlanPremium, Banned: true},
		"user-free":    {UserID: "u-1", Role: domain.RoleUser, Plan: domain.PlanFree},
		"user-premium": {UserID: "u-2", Role: domain.RoleUser, Plan: domain.PlanPremium},
		"user-banned":  {UserID: "u-3", Role: domain.RoleUser, Plan: domain.PlanPremium, Banned: true},
		"no-id":        {Role: domain.RoleUser, Plan: domain.PlanFree},
	}}
}

func TestClient_NestedOrder(t *testing.T) {
	var trace []string
	client, err := New(
		&traceStage{name: "a", trace: &trace},
		&traceStage{name: "b", trace: &trace},
		&traceStage{name: "c", trace: &trace},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := client.Execute(context.Background(), ports.Invocation{Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			trace = append(trace, "handler")
			return "ok", nil
		})

	if res.Outcome != domain.OutcomeSuccess || res.Data != "ok" {
		t.Fatalf("unexpected result: %+v", res)
	}

	want := []string{"before:a", "before:b", "before:c", "handler", "after:c", "after:b", "after:a"}
	if strings.Join(trace, ",") != strings.Join(want, ",") {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if names := client.StageNames(); strings.Join(names, ",") != "a,b,c" {
		t.Errorf("StageNames() = %v", names)
	}
}

func TestClient_UseDoesNotModifyParent(t *testing.T) {
	var trace []string
	parent, err := New(&traceStage{name: "a", trace: &trace})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	child, err := parent.Use(&traceStage{name: "b", trace: &trace})
	if err != nil {
		t.Fatalf("Use() error = %v", err)
	}

	if len(parent.StageNames()) != 1 {
		t.Errorf("parent stages = %v", parent.StageNames())
	}
	if len(child.StageNames()) != 2 {
		t.Errorf("child stages = %v", child.StageNames())
	}
}

func TestNew_RejectsGateBeforeAuthentication(t *testing.T) {
	resolver := standardResolver()

	tests := []struct {
		name   string
		stages []ports.Stage
	}{
		{"role gate first", []ports.Stage{NewRoleGate(domain.RoleAdmin), NewAuthStage(resolver)}},
		{"plan gate first", []ports.Stage{NewPlanGate(domain.PlanPremium), NewAuthStage(resolver)}},
		{"gate without authentication", []ports.Stage{NewLoggingStage(nil), NewRoleGate(domain.RoleUser)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.stages...)
			if !errors.Is(err, ErrMissingContext) {
				t.Fatalf("New() error = %v, want ErrMissingContext", err)
			}
			var missing *domain.MissingContextError
			if !errors.As(err, &missing) {
				t.Fatalf("New() error = %v, want MissingContextError", err)
			}
			if missing.Stage == "" {
				t.Error("expected offending stage name")
			}
		})
	}
}

func TestClient_GateBeforeAuthenticationFailsAtRuntime(t *testing.T) {
	resolver := standardResolver()
	// Bypass New's ordering check to exercise the gate's own guard.
	client := &Client{
		stages: []ports.Stage{NewRoleGate(domain.RoleAdmin), NewAuthStage(resolver)},
		tracer: otel.Tracer(tracerName),
	}

	called := false
	res := client.Execute(context.Background(), ports.Invocation{Credential: "admin-free", Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			called = true
			return nil, nil
		})

	if called {
		t.Error("handler must not run")
	}
	if res.Outcome != domain.OutcomeFailure {
		t.Fatalf("Outcome = %q, want failure", res.Outcome)
	}
	if res.Error.Message != domain.DefaultServerErrorMessage {
		t.Errorf("Message = %q", res.Error.Message)
	}
}

func TestClients_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		client      func(*Clients) *Client
		cred        domain.Credential
		wantOutcome domain.Outcome
		wantKind    domain.ErrorKind
		wantMessage string
		wantRedir   string
		wantHandler bool
	}{
		{
			name:        "no credential",
			client:      func(c *Clients) *Client { return c.Authenticated },
			wantOutcome: domain.OutcomeFailure,
			wantKind:    domain.ErrorKindUnauthenticated,
			wantMessage: "Session not found",
		},
		{
			name:        "unknown credential",
			client:      func(c *Clients) *Client { return c.Admin },
			cred:        "forged",
			wantOutcome: domain.OutcomeFailure,
			wantKind:    domain.ErrorKindUnauthenticated,
			wantMessage: "Session not found",
		},
		{
			name:        "identity without id",
			client:      func(c *Clients) *Client { return c.Authenticated },
			cred:        "no-id",
			wantOutcome: domain.OutcomeFailure,
			wantKind:    domain.ErrorKindInvalidSession,
			wantMessage: "Session is not valid",
		},
		{
			name:        "user on admin action redirects",
			client:      func(c *Clients) *Client { return c.Admin },
			cred:        "user-free",
			wantOutcome: domain.OutcomeRedirect,
			wantRedir:   "/user/dashboard",
		},
		{
			name:        "admin on user action redirects",
			client:      func(c *Clients) *Client { return c.User },
			cred:        "admin-free",
			wantOutcome: domain.OutcomeRedirect,
			wantRedir:   "/admin/dashboard",
		},
		{
			name:        "free admin on premium action",
			client:      func(c *Clients) *Client { return c.Premium },
			cred:        "admin-free",
			wantOutcome: domain.OutcomeFailure,
			wantKind:    domain.ErrorKindEntitlementRequired,
			wantMessage: "Upgrade to premium to access the feature.",
		},
		{
			name:        "premium user on premium action",
			client:      func(c *Clients) *Client { return c.Premium },
			cred:        "user-premium",
			wantOutcome: domain.OutcomeSuccess,
			wantHandler: true,
		},
		{
			name:        "admin on admin action",
			client:      func(c *Clients) *Client { return c.Admin },
			cred:        "admin-free",
			wantOutcome: domain.OutcomeSuccess,
			wantHandler: true,
		},
		{
			name:        "banned admin keeps access",
			client:      func(c *Clients) *Client { return c.Admin },
			cred:        "admin-banned",
			wantOutcome: domain.OutcomeSuccess,
			wantHandler: true,
		},
		{
			name:        "banned user is refused",
			client:      func(c *Clients) *Client { return c.User },
			cred:        "user-banned",
			wantOutcome: domain.OutcomeFailure,
			wantKind:    domain.ErrorKindBanned,
			wantMessage: "Account is banned",
		},
		{
			name:        "base client needs no session",
			client:      func(c *Clients) *Client { return c.Base },
			wantOutcome: domain.OutcomeSuccess,
			wantHandler: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			clients := newTestClients(t, standardResolver(), logger)

			called := false
			res := tt.client(clients).Execute(context.Background(),
				ports.Invocation{Credential: tt.cred, Metadata: testMeta},
				func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
					called = true
					return "done", nil
				})

			if !res.Valid() {
				t.Fatalf("result is not exactly one outcome: %+v", res)
			}
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %q, want %q (%+v)", res.Outcome, tt.wantOutcome, res.Error)
			}
			if called != tt.wantHandler {
				t.Errorf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if tt.wantKind != "" && res.Error.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", res.Error.Kind, tt.wantKind)
			}
			if tt.wantMessage != "" && res.Error.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", res.Error.Message, tt.wantMessage)
			}
			if res.RedirectTo != tt.wantRedir {
				t.Errorf("RedirectTo = %q, want %q", res.RedirectTo, tt.wantRedir)
			}
		})
	}
}

func TestClients_HandlerSeesIdentity(t *testing.T) {
	clients := newTestClients(t, standardResolver(), nil)

	var got domain.Identity
	res := clients.User.Execute(context.Background(),
		ports.Invocation{Credential: "user-premium", Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			var err error
			got, err = ec.Identity()
			return nil, err
		})

	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("Outcome = %q (%+v)", res.Outcome, res.Error)
	}
	want := domain.Identity{UserID: "u-2", Role: domain.RoleUser, Plan: domain.PlanPremium}
	if got != want {
		t.Errorf("Identity = %+v, want %+v", got, want)
	}
}

func TestClient_StageCannotSeeLaterFields(t *testing.T) {
	resolver := standardResolver()

	var seenBefore, seenAfter bool
	observer := &funcStage{name: "observer", fn: func(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
		seenBefore = ec.Has(domain.KeyUserID)
		res, err := next(ctx, ec)
		seenAfter = ec.Has(domain.KeyUserID)
		return res, err
	}}

	client, err := New(observer, NewAuthStage(resolver))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := client.Execute(context.Background(), ports.Invocation{Credential: "user-free", Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			if !ec.Has(domain.KeyUserID) {
				t.Error("handler should see the user id")
			}
			return nil, nil
		})

	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("Outcome = %q", res.Outcome)
	}
	if seenBefore || seenAfter {
		t.Errorf("outer stage observed later fields: before=%v after=%v", seenBefore, seenAfter)
	}
}

func TestClient_RejectsShrunkContext(t *testing.T) {
	resolver := standardResolver()
	dropper := &funcStage{name: "dropper", fn: func(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
		return next(ctx, domain.ExecutionContext{})
	}}

	client, err := New(NewAuthStage(resolver), dropper)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	called := false
	res := client.Execute(context.Background(), ports.Invocation{Credential: "user-free", Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			called = true
			return nil, nil
		})

	if called {
		t.Error("handler must not run with a shrunk context")
	}
	if res.Outcome != domain.OutcomeFailure || res.Error.Kind != domain.ErrorKindUnknown {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		panicValue  any
		wantKind    domain.ErrorKind
		wantMessage string
		wantLogged  string
	}{
		{
			name:        "domain error passes through",
			handlerErr:  &domain.UserAlreadyRegisteredError{Email: "x@example.com"},
			wantKind:    domain.ErrorKindDomain,
			wantMessage: "UserAlreadyRegistered: x@example.com",
			wantLogged:  "UserAlreadyRegistered: x@example.com",
		},
		{
			name:        "internal error is hidden",
			handlerErr:  errors.New("disk quota exceeded on /var/lib/db"),
			wantKind:    domain.ErrorKindUnknown,
			wantMessage: domain.DefaultServerErrorMessage,
			wantLogged:  "disk quota exceeded on /var/lib/db",
		},
		{
			name:        "panic is hidden",
			panicValue:  "index out of range",
			wantKind:    domain.ErrorKindUnknown,
			wantMessage: domain.DefaultServerErrorMessage,
			wantLogged:  "index out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newTestLogger()
			clients := newTestClients(t, standardResolver(), logger)

			res := clients.Authenticated.Execute(context.Background(),
				ports.Invocation{Credential: "user-free", Metadata: testMeta},
				func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
					if tt.panicValue != nil {
						panic(tt.panicValue)
					}
					return nil, tt.handlerErr
				})

			if res.Outcome != domain.OutcomeFailure {
				t.Fatalf("Outcome = %q, want failure", res.Outcome)
			}
			if res.Error.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", res.Error.Kind, tt.wantKind)
			}
			if res.Error.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", res.Error.Message, tt.wantMessage)
			}

			entries := logs.entries(t)
			last := entries[len(entries)-1]
			if last["msg"] != "action completed" {
				t.Fatalf("last log = %v", last)
			}
			if logged, _ := last["error"].(string); !strings.Contains(logged, tt.wantLogged) {
				t.Errorf("logged error = %q, want it to contain %q", logged, tt.wantLogged)
			}
		})
	}
}

func TestLoggingStage_RecordsShortCircuit(t *testing.T) {
	logger, logs := newTestLogger()
	resolver := standardResolver()
	clients := newTestClients(t, resolver, logger)

	called := false
	res := clients.Authenticated.Execute(context.Background(),
		ports.Invocation{Metadata: testMeta, Input: map[string]string{"sentence": "hello"}},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			called = true
			return nil, nil
		})

	if called {
		t.Error("handler must not run without a session")
	}
	if res.Error == nil || res.Error.Kind != domain.ErrorKindUnauthenticated {
		t.Fatalf("unexpected result: %+v", res)
	}

	entries := logs.entries(t)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	started, completed := entries[0], entries[1]
	if started["msg"] != "action started" || started["action"] != "test-action" {
		t.Errorf("unexpected entry log: %v", started)
	}
	if input, ok := started["input"].(map[string]any); !ok || input["sentence"] != "hello" {
		t.Errorf("entry log input = %v", started["input"])
	}
	if _, ok := started["time"]; !ok {
		t.Error("entry log has no timestamp")
	}
	if completed["msg"] != "action completed" {
		t.Errorf("unexpected exit log: %v", completed)
	}
	if completed["error_kind"] != string(domain.ErrorKindUnauthenticated) {
		t.Errorf("exit log error_kind = %v", completed["error_kind"])
	}
	if completed["action"] != "test-action" || completed["input"] == nil {
		t.Errorf("exit log should repeat metadata and input: %v", completed)
	}
	if _, ok := completed["duration"]; !ok {
		t.Error("exit log has no duration")
	}
}

func TestClient_InvalidMetadata(t *testing.T) {
	clients := newTestClients(t, standardResolver(), nil)

	called := false
	res := clients.Base.Execute(context.Background(), ports.Invocation{Metadata: domain.Metadata{}},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			called = true
			return nil, nil
		})

	if called {
		t.Error("handler must not run with invalid metadata")
	}
	if res.Outcome != domain.OutcomeFailure || res.Error.Kind != domain.ErrorKindInvalidMetadata {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Error.Message != domain.DefaultServerErrorMessage {
		t.Errorf("Message = %q", res.Error.Message)
	}
}

func TestClient_ResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("database is locked")}
	clients := newTestClients(t, resolver, nil)

	res := clients.Authenticated.Execute(context.Background(),
		ports.Invocation{Credential: "anything", Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			return nil, nil
		})

	if res.Outcome != domain.OutcomeFailure || res.Error.Message != domain.DefaultServerErrorMessage {
		t.Errorf("unexpected result: %+v", res)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
}

func TestClient_InvalidStageResult(t *testing.T) {
	broken := &funcStage{name: "broken", fn: func(ctx context.Context, ec domain.ExecutionContext, inv ports.Invocation, next ports.Next) (*domain.Result, error) {
		return nil, nil
	}}
	client, err := New(broken)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := client.Execute(context.Background(), ports.Invocation{Metadata: testMeta},
		func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
			return nil, nil
		})
	if res.Outcome != domain.OutcomeFailure || !res.Valid() {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClient_ConcurrentInvocations(t *testing.T) {
	clients := newTestClients(t, standardResolver(), nil)
	creds := []domain.Credential{"user-free", "user-premium", "admin-free", ""}

	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 100; i++ {
		cred := creds[i%len(creds)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := clients.Authenticated.Execute(context.Background(),
				ports.Invocation{Credential: cred, Metadata: testMeta},
				func(ctx context.Context, ec domain.ExecutionContext, input any) (any, error) {
					return ec.UserID()
				})
			if cred == "" {
				if res.Outcome != domain.OutcomeFailure {
					errs <- "expected failure without credential"
				}
				return
			}
			if res.Outcome != domain.OutcomeSuccess {
				errs <- "unexpected failure for " + string(cred)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
