package plugin

import (
	"context"
	"errors"
	"testing"

	"firestige.xyz/speadcap/internal/core"
)

type mockPlugin struct {
	name    string
	initErr error
	initCfg map[string]any
}

func (m *mockPlugin) Name() string { return m.name }
func (m *mockPlugin) Init(cfg map[string]any) error {
	m.initCfg = cfg
	return m.initErr
}
func (m *mockPlugin) Start(ctx context.Context) error { return nil }
func (m *mockPlugin) Stop(ctx context.Context) error  { return nil }

type mockSource struct {
	mockPlugin
	seqs [][]core.Word
}

func (m *mockSource) Read(ctx context.Context) ([][]core.Word, error) { return m.seqs, nil }

type mockReporter struct {
	mockPlugin
	reported []core.Packet
}

func (m *mockReporter) Report(ctx context.Context, pkt core.Packet) error {
	m.reported = append(m.reported, pkt)
	return nil
}
func (m *mockReporter) Flush(ctx context.Context) error { return nil }

func TestRegisterAndGetSource(t *testing.T) {
	sourceReg.Reset()
	defer sourceReg.Reset()

	RegisterSource("test_src", func() Source {
		return &mockSource{mockPlugin: mockPlugin{name: "test_src"}, seqs: [][]core.Word{{1}}}
	})

	src, err := NewSource("test_src", map[string]any{"path": "x"})
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.Name() != "test_src" {
		t.Errorf("expected name test_src, got %s", src.Name())
	}
	if got := src.(*mockSource).initCfg["path"]; got != "x" {
		t.Errorf("Init did not receive config, got %v", got)
	}
	seqs, _ := src.Read(context.Background())
	if len(seqs) != 1 {
		t.Errorf("expected 1 sequence, got %d", len(seqs))
	}
}

func TestRegisterAndGetReporter(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	RegisterReporter("b", func() Reporter { return &mockReporter{mockPlugin: mockPlugin{name: "b"}} })
	RegisterReporter("a", func() Reporter { return &mockReporter{mockPlugin: mockPlugin{name: "a"}} })

	if names := ReporterNames(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected sorted names [a b], got %v", names)
	}

	r, err := NewReporter("a", nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}
	if err := r.Report(context.Background(), core.Packet{}); err != nil {
		t.Errorf("Report failed: %v", err)
	}
	if len(r.(*mockReporter).reported) != 1 {
		t.Error("expected one reported packet")
	}
}

func TestUnknownPlugins(t *testing.T) {
	sourceReg.Reset()
	reporterReg.Reset()

	if _, err := NewSource("nope", nil); !errors.Is(err, core.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
	if _, err := GetReporterFactory("nope"); !errors.Is(err, core.ErrReporterNotFound) {
		t.Errorf("expected ErrReporterNotFound, got %v", err)
	}
}

func TestInitFailureIsWrapped(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	boom := errors.New("bad config")
	RegisterReporter("bad", func() Reporter {
		return &mockReporter{mockPlugin: mockPlugin{name: "bad", initErr: boom}}
	})

	_, err := NewReporter("bad", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped init error, got %v", err)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	sourceReg.Reset()
	defer sourceReg.Reset()

	f := func() Source { return &mockSource{} }
	RegisterSource("dup", f)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterSource("dup", f)
}
