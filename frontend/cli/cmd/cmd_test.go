package cmd

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/backend/api"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/secret"
	"github.com/furisto/seyal/shared"
	"github.com/furisto/seyal/shared/config"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

type MockFormatter struct {
	DisplayedObjects any
	DisplayFormat    OutputFormat
}

func (m *MockFormatter) Display(resources any, format OutputFormat) error {
	m.DisplayedObjects = resources
	m.DisplayFormat = format
	return nil
}

// FakeRuntime records the calls the commands make.
type FakeRuntime struct {
	GenerateRoadmapFunc func(ctx context.Context, sessionID, goal string) (*agent.RoadmapResult, error)
	GenerateTasksFunc   func(ctx context.Context, sessionID string) (*memory.State, error)
	ToggleTaskFunc      func(ctx context.Context, sessionID string, index int, done bool) (*memory.State, error)
	LogProgressFunc     func(ctx context.Context, sessionID, update string, mood memory.Mood) (*memory.LogResult, error)
	ReflectFunc         func(ctx context.Context, sessionID string) (string, error)
	StateFunc           func(ctx context.Context, sessionID string) (*memory.State, error)

	Calls []string
}

func (f *FakeRuntime) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeRuntime) GenerateRoadmap(ctx context.Context, sessionID, goal string) (*agent.RoadmapResult, error) {
	f.record("GenerateRoadmap " + sessionID + " " + goal)
	if f.GenerateRoadmapFunc != nil {
		return f.GenerateRoadmapFunc(ctx, sessionID, goal)
	}
	return &agent.RoadmapResult{State: memory.NewState(sessionID, time.Now())}, nil
}

func (f *FakeRuntime) GenerateTasks(ctx context.Context, sessionID string) (*memory.State, error) {
	f.record("GenerateTasks " + sessionID)
	if f.GenerateTasksFunc != nil {
		return f.GenerateTasksFunc(ctx, sessionID)
	}
	return memory.NewState(sessionID, time.Now()), nil
}

func (f *FakeRuntime) ToggleTask(ctx context.Context, sessionID string, index int, done bool) (*memory.State, error) {
	if f.ToggleTaskFunc != nil {
		return f.ToggleTaskFunc(ctx, sessionID, index, done)
	}
	return memory.NewState(sessionID, time.Now()), nil
}

func (f *FakeRuntime) LogProgress(ctx context.Context, sessionID, update string, mood memory.Mood) (*memory.LogResult, error) {
	f.record("LogProgress " + sessionID + " " + update + " " + string(mood))
	if f.LogProgressFunc != nil {
		return f.LogProgressFunc(ctx, sessionID, update, mood)
	}
	return &memory.LogResult{Message: memory.LoggedMessage}, nil
}

func (f *FakeRuntime) Reflect(ctx context.Context, sessionID string) (string, error) {
	f.record("Reflect " + sessionID)
	if f.ReflectFunc != nil {
		return f.ReflectFunc(ctx, sessionID)
	}
	return "", nil
}

func (f *FakeRuntime) State(ctx context.Context, sessionID string) (*memory.State, error) {
	if f.StateFunc != nil {
		return f.StateFunc(ctx, sessionID)
	}
	return memory.NewState(sessionID, time.Now()), nil
}

func (f *FakeRuntime) Reset(ctx context.Context, sessionID string) error {
	f.record("Reset " + sessionID)
	return nil
}

func (f *FakeRuntime) SetAPIKey(ctx context.Context, sessionID, key string) error { return nil }
func (f *FakeRuntime) HasAPIKey(ctx context.Context, sessionID string) bool     { return false }
func (f *FakeRuntime) Cost(state *memory.State) decimal.Decimal                 { return decimal.Zero }
func (f *FakeRuntime) Provider() model.ProviderKind                             { return model.ProviderKindGemini }

type TestSetup struct {
	CmpOptions []cmp.Option
}

type TestScenario struct {
	Name        string
	Command     []string
	Stdin       string
	Runtime     *FakeRuntime
	SetupConfig func(cfg *config.Config)
	SetupEnv    map[string]string
	Expected    TestExpectation
}

type TestExpectation struct {
	// Stdout lists fragments the output must contain. Rendered markdown
	// carries terminal styling, so whole-output comparisons are avoided.
	Stdout           []string
	Error            string
	Calls            []string
	DisplayedObjects any
	DisplayFormat    OutputFormat
}

type testResult struct {
	stdout    string
	err       error
	formatter *MockFormatter
}

func (s *TestSetup) RunTests(t *testing.T, scenarios []TestScenario) {
	if len(scenarios) == 0 {
		t.Fatalf("no scenarios provided")
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			t.Setenv("SEYAL_SESSION", "")
			for key, value := range scenario.SetupEnv {
				t.Setenv(key, value)
			}

			runtime := scenario.Runtime
			if runtime == nil {
				runtime = &FakeRuntime{}
			}

			cfg := config.Default()
			if scenario.SetupConfig != nil {
				scenario.SetupConfig(cfg)
			}

			result := execute(t, newTestContext(t, cfg, runtime), scenario.Command, scenario.Stdin)

			if scenario.Expected.Error == "" && result.err != nil {
				t.Fatalf("unexpected error: %v", result.err)
			}
			if scenario.Expected.Error != "" {
				if result.err == nil || !strings.Contains(stripANSI(result.err.Error()), scenario.Expected.Error) {
					t.Fatalf("error = %v, want it to contain %q", result.err, scenario.Expected.Error)
				}
			}

			for _, fragment := range scenario.Expected.Stdout {
				if !strings.Contains(result.stdout, fragment) {
					t.Errorf("stdout misses %q:\n%s", fragment, result.stdout)
				}
			}

			if scenario.Expected.Calls != nil {
				opts := append([]cmp.Option{cmpopts.EquateEmpty()}, s.CmpOptions...)
				if diff := cmp.Diff(scenario.Expected.Calls, runtime.Calls, opts...); diff != "" {
					t.Errorf("calls mismatch (-want +got):\n%s", diff)
				}
			}

			if scenario.Expected.DisplayedObjects != nil {
				if diff := cmp.Diff(scenario.Expected.DisplayedObjects, result.formatter.DisplayedObjects, s.CmpOptions...); diff != "" {
					t.Errorf("displayed objects mismatch (-want +got):\n%s", diff)
				}
				if result.formatter.DisplayFormat != scenario.Expected.DisplayFormat {
					t.Errorf("format = %q, want %q", result.formatter.DisplayFormat, scenario.Expected.DisplayFormat)
				}
			}
		})
	}
}

func newTestContext(t *testing.T, cfg *config.Config, runtime *FakeRuntime) context.Context {
	t.Helper()

	fs := &afero.Afero{Fs: afero.NewMemMapFs()}
	secrets, err := secret.NewFileProvider(fs.Fs, "/secrets")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKeyFileSystem, fs)
	ctx = context.WithValue(ctx, ContextKeyUserInfo, shared.StaticUserInfo{Base: t.TempDir()})
	ctx = context.WithValue(ctx, ContextKeyConfig, cfg)
	ctx = context.WithValue(ctx, ContextKeySecretStore, secret.Provider(secrets))
	ctx = context.WithValue(ctx, ContextKeyDisableFileLogs, true)
	ctx = context.WithValue(ctx, ContextKeyOutputRenderer, OutputRenderer(&MockFormatter{}))
	if runtime != nil {
		ctx = context.WithValue(ctx, ContextKeyRuntime, api.Runtime(runtime))
	}
	return ctx
}

func execute(t *testing.T, ctx context.Context, args []string, stdin string) testResult {
	t.Helper()

	testCmd := NewRootCmd()
	testCmd.SetIn(strings.NewReader(stdin))

	var stdout, stderr bytes.Buffer
	testCmd.SetOut(&stdout)
	testCmd.SetErr(&stderr)
	testCmd.SetArgs(args)

	err := testCmd.ExecuteContext(ctx)
	formatter, _ := ctx.Value(ContextKeyOutputRenderer).(*MockFormatter)
	return testResult{stdout: stripANSI(stdout.String()), err: err, formatter: formatter}
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func stripANSI(s string) string {
	return ansiSequence.ReplaceAllString(s, "")
}
