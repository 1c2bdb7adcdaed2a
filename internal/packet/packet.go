package packet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"informer/internal/logger"
)

const StatusOK = "OK"

var (
	ErrNotFound      = errors.New("packet not found")
	ErrInvalidSymbol = errors.New("invalid symbol")

	// tickers like BRK.B or BF-B; never a path
	symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,31}$`)
)

// Packet is the canonical per-symbol input produced upstream. Everything
// besides the header fields is kept as opaque JSON.
type Packet struct {
	Symbol string
	AsOf   time.Time
	Status string
	Raw    json.RawMessage
}

func (p *Packet) Ready() bool {
	return p != nil && strings.EqualFold(p.Status, StatusOK)
}

// Summary is the small, stable view of a packet that prompts lean on.
type Summary struct {
	Timeframe   string   `json:"timeframe"`
	LatestClose *float64 `json:"latest_close,omitempty"`
	ATR14       *float64 `json:"atr14,omitempty"`
	TrendRegime string   `json:"trend_regime,omitempty"`
	VolRegime   string   `json:"vol_regime,omitempty"`
	QAPassed    bool     `json:"qa_passed"`
}

// Summarize reads the preferred timeframe, falling back to the first one in
// lexical order.
func (p *Packet) Summarize(preferred string) Summary {
	tfs := gjson.GetBytes(p.Raw, "timeframes")
	tf := strings.TrimSpace(preferred)
	if tf == "" || !tfs.Get(gjson.Escape(tf)).Exists() {
		keys := []string{}
		tfs.ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
		sort.Strings(keys)
		tf = ""
		if len(keys) > 0 {
			tf = keys[0]
		}
	}
	out := Summary{Timeframe: tf}
	if tf == "" {
		return out
	}
	node := tfs.Get(gjson.Escape(tf))
	if v := node.Get("latest_bar.close"); v.Exists() {
		f := v.Float()
		out.LatestClose = &f
	}
	if v := node.Get("latest_features.atr14"); v.Exists() && v.Type == gjson.Number {
		f := v.Float()
		out.ATR14 = &f
	}
	out.TrendRegime = node.Get("latest_features.trend_regime").String()
	out.VolRegime = node.Get("latest_features.vol_regime").String()
	out.QAPassed = node.Get("qa.passed").Bool()
	return out
}

// Parse decodes one packet document; symbol, as_of and status are required.
func Parse(data []byte) (*Packet, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("packet: invalid json")
	}
	doc := gjson.ParseBytes(data)
	symbol := strings.ToUpper(strings.TrimSpace(doc.Get("symbol").String()))
	if symbol == "" {
		return nil, fmt.Errorf("packet: symbol missing")
	}
	asOfRaw := doc.Get("as_of").String()
	if asOfRaw == "" {
		asOfRaw = doc.Get("generated_at").String()
	}
	asOf, err := time.Parse(time.RFC3339, asOfRaw)
	if err != nil {
		return nil, fmt.Errorf("packet %s: as_of: %w", symbol, err)
	}
	return &Packet{
		Symbol: symbol,
		AsOf:   asOf.UTC(),
		Status: strings.ToUpper(strings.TrimSpace(doc.Get("status").String())),
		Raw:    append(json.RawMessage(nil), data...),
	}, nil
}

// Loader reads packets from <dir>/<SYMBOL>.json.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

func (l *Loader) Load(symbol string) (*Packet, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) || strings.Contains(symbol, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, symbol+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if p.Symbol != symbol {
		return nil, fmt.Errorf("packet file %s.json carries symbol %s", symbol, p.Symbol)
	}
	return p, nil
}

// LoadAll returns one entry per symbol, in order; unreadable packets map to
// nil and are logged.
func (l *Loader) LoadAll(symbols []string) []*Packet {
	out := make([]*Packet, len(symbols))
	for i, s := range symbols {
		p, err := l.Load(s)
		if err != nil {
			logger.Warnf("[packet] %s not loaded: %v", s, err)
			continue
		}
		out[i] = p
	}
	return out
}
