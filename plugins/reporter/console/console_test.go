package console

import (
	"bytes"
	"context"
	"testing"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/core/decoder"
)

func testPacket(t *testing.T) core.Packet {
	t.Helper()
	pkt, err := decoder.FromWords([]core.Word{
		decoder.EncodeMagic(4, 2, 6, 2),
		decoder.EncodeItemPointer(core.ItemHeapCounter, 255, 16, 48, true),
		decoder.EncodeItemPointer(core.ItemPayloadLength, 8, 16, 48, true),
		42,
	}, decoder.Expectations{})
	if err != nil {
		t.Fatalf("FromWords failed: %v", err)
	}
	return pkt
}

func TestConsoleReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
		wantFmt string
	}{
		{"nil config defaults to text", nil, false, "text"},
		{"empty config defaults to text", map[string]any{}, false, "text"},
		{"json format", map[string]any{"format": "json"}, false, "json"},
		{"yaml format", map[string]any{"format": "yaml"}, false, "yaml"},
		{"invalid format", map[string]any{"format": "xml"}, true, ""},
		{"unknown option", map[string]any{"colour": true}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithWriter(&bytes.Buffer{})
			err := r.Init(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && r.config.Format != tt.wantFmt {
				t.Errorf("Init() format = %v, want %v", r.config.Format, tt.wantFmt)
			}
		})
	}
}

func TestConsoleReporter_ReportText(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   string
	}{
		{
			name:   "decimal",
			config: nil,
			want:   "header 0x0000: version(4) flavour(64,48) num_headers(2)\nheader 0x0001: 255\nheader 0x0004: 8\n42\n",
		},
		{
			name:   "hex headers only",
			config: map[string]any{"hex": true, "headers_only": true},
			want:   "header 0x0000: version(4) flavour(64,48) num_headers(2)\nheader 0x0001: 0xff\nheader 0x0004: 0x8\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewWithWriter(&buf)
			if err := r.Init(tt.config); err != nil {
				t.Fatalf("Init failed: %v", err)
			}
			if err := r.Report(context.Background(), testPacket(t)); err != nil {
				t.Fatalf("Report failed: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", buf.String(), tt.want)
			}
		})
	}
}

func TestConsoleReporter_ReportStructured(t *testing.T) {
	var buf bytes.Buffer
	r := NewWithWriter(&buf)
	if err := r.Init(map[string]any{"format": "json", "headers_only": true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := r.Report(ctx, testPacket(t)); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	line := `{"version":4,"flavour":"64,48","num_headers":2,"headers":[{"id":1,"value":255},{"id":4,"value":8}]}` + "\n"
	if buf.String() != line+line {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if r.Reported() != 2 {
		t.Errorf("Reported() = %d, want 2", r.Reported())
	}
}

func TestConsoleReporter_ReportYAMLSeparatesDocuments(t *testing.T) {
	var buf bytes.Buffer
	r := NewWithWriter(&buf)
	if err := r.Init(map[string]any{"format": "yaml"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = r.Report(context.Background(), testPacket(t))
	_ = r.Report(context.Background(), testPacket(t))

	if n := bytes.Count(buf.Bytes(), []byte("---\n")); n != 1 {
		t.Errorf("expected 1 document separator, got %d", n)
	}
}
