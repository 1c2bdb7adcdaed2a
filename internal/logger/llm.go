package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"informer/internal/pkg/jsonutil"
	"informer/internal/pkg/text"
)

// maxPayloadPreview bounds prompt and response bodies unless the full
// payload dump is enabled.
const maxPayloadPreview = 2000

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

// SetLLMWriter routes provider traffic dumps to w; nil disables them.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	Title string
	Body  string
}

func dumpEnabled() bool {
	llmMu.Lock()
	defer llmMu.Unlock()
	return llmDumpPayload
}

// payloadBody indents s when it is a JSON document and the full dump is on,
// keeping key order. Anything else is truncated or passed through.
func payloadBody(s string) string {
	if !dumpEnabled() {
		return text.Truncate(s, maxPayloadPreview)
	}
	if out, ok := indentJSON(s); ok {
		return out
	}
	return s
}

func indentJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

// extractedSection shows the object the gateway will parse out of a reply
// wrapped in prose or a code fence.
func extractedSection(raw string) (llmSection, bool) {
	if !dumpEnabled() {
		return llmSection{}, false
	}
	if _, ok := indentJSON(raw); ok {
		return llmSection{}, false
	}
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return llmSection{}, false
	}
	body, ok := indentJSON(obj)
	if !ok {
		body = obj
	}
	return llmSection{Title: "JSON", Body: body}, true
}

func logLLM(tags []string, sections []llmSection) {
	llmMu.Lock()
	out := llmLog
	llmMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}

// LogLLMRequest records the prompt sent for one stage call.
func LogLLMRequest(runID, provider, role, system, user string) {
	sections := []llmSection{
		{Title: "SYSTEM", Body: text.Truncate(system, maxPayloadPreview)},
		{Title: "USER", Body: payloadBody(user)},
	}
	logLLM([]string{"request", runID, provider, role}, sections)
}

// LogLLMResponse records the raw provider text (or the failure) for one stage call.
func LogLLMResponse(runID, provider, role, raw string, elapsed time.Duration, failure error) {
	sections := []llmSection{
		{Title: "RAW", Body: payloadBody(raw)},
	}
	if sec, ok := extractedSection(raw); ok {
		sections = append(sections, sec)
	}
	sections = append(sections, llmSection{Title: "ELAPSED", Body: elapsed.Truncate(time.Millisecond).String()})
	if failure != nil {
		sections = append(sections, llmSection{Title: "ERROR", Body: failure.Error()})
	}
	logLLM([]string{"response", runID, provider, role}, sections)
}
