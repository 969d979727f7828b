// Package words implements a source reading SPEAD words from a text dump.
//
// One or more words per line, 0x-prefixed hex or decimal. A '#' starts a
// comment. A blank line or a line holding only "---" ends a packet.
package words

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/internal/utils"
	"firestige.xyz/speadcap/pkg/plugin"
)

const Name = "words"

// Base selects how unprefixed words are parsed.
type Base string

const (
	BaseAuto Base = "auto" // 0x prefix means hex, otherwise decimal
	BaseHex  Base = "hex"
	BaseDec  Base = "dec"
)

func init() {
	plugin.RegisterSource(Name, NewWordsSource)
}

// Config represents words source configuration.
type Config struct {
	Path string `mapstructure:"path"` // required, "-" for stdin
	Base Base   `mapstructure:"base"` // optional, default auto
}

// WordsSource reads word sequences from a text file.
type WordsSource struct {
	config Config
	logger log.Logger
}

// NewWordsSource creates a new words source.
func NewWordsSource() plugin.Source {
	return &WordsSource{config: Config{Base: BaseAuto}}
}

func (s *WordsSource) Name() string { return Name }

func (s *WordsSource) Init(cfg map[string]any) error {
	if err := config.DecodePluginConfig(cfg, &s.config); err != nil {
		return err
	}
	if s.config.Path == "" {
		return fmt.Errorf("%w: path is required", core.ErrConfigInvalid)
	}
	switch s.config.Base {
	case BaseAuto, BaseHex, BaseDec:
	case "":
		s.config.Base = BaseAuto
	default:
		return fmt.Errorf("%w: base must be auto, hex or dec, got %q", core.ErrConfigInvalid, s.config.Base)
	}
	s.logger = log.GetLogger().WithField("source", Name)
	return nil
}

func (s *WordsSource) Start(ctx context.Context) error { return nil }
func (s *WordsSource) Stop(ctx context.Context) error  { return nil }

// Read parses the whole file.
func (s *WordsSource) Read(ctx context.Context) ([][]core.Word, error) {
	rc, err := utils.OpenInput(s.config.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	seqs, err := Parse(ctx, rc, s.config.Base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}
	s.logger.WithField("path", s.config.Path).WithField("sequences", len(seqs)).Debug("words dump read")
	return seqs, nil
}

// Parse reads a words dump from r.
func Parse(ctx context.Context, r io.Reader, base Base) ([][]core.Word, error) {
	var (
		seqs [][]core.Word
		cur  []core.Word
	)
	flush := func() {
		if len(cur) > 0 {
			seqs = append(seqs, cur)
			cur = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "---" || (line == "" && !commentOnly(sc.Text())) {
			flush()
			continue
		}
		for _, field := range strings.Fields(line) {
			w, err := ParseWord(field, base)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur = append(cur, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return seqs, nil
}

// commentOnly reports whether a raw line holds nothing but a comment.
func commentOnly(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "#")
}

// ParseWord parses one word. Underscores are accepted as digit separators.
func ParseWord(s string, base Base) (core.Word, error) {
	digits := strings.ReplaceAll(s, "_", "")
	hasPrefix := strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X")

	var (
		v   uint64
		err error
	)
	switch {
	case hasPrefix && base != BaseDec:
		v, err = strconv.ParseUint(digits[2:], 16, 64)
	case base == BaseHex:
		v, err = strconv.ParseUint(digits, 16, 64)
	default:
		v, err = strconv.ParseUint(digits, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid word %q: %w", s, err)
	}
	return core.Word(v), nil
}
