package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one decoded line of the clanboard log.
type Entry struct {
	Time   time.Time
	Level  zapcore.Level
	Logger string
	Msg    string
	// Fields holds every key that is not one of the above.
	Fields map[string]any
	// Raw is set when the line is not JSON; it is shown as is.
	Raw string
}

// Read returns at most maxLines from the end of the file at path. A missing
// file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Parse decodes a JSON log line. Lines that are not JSON objects come back
// as a raw entry at info level.
func Parse(line string) Entry {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return Entry{Level: zapcore.InfoLevel, Raw: line}
	}
	e := Entry{Level: zapcore.InfoLevel, Fields: make(map[string]any)}
	for k, v := range obj {
		s, _ := v.(string)
		switch k {
		case "time":
			if t, err := time.Parse("2006-01-02T15:04:05.000Z0700", s); err == nil {
				e.Time = t
			}
		case "level":
			_ = e.Level.UnmarshalText([]byte(s))
		case "logger":
			e.Logger = s
		case "msg":
			e.Msg = s
		case "caller", "stacktrace":
		default:
			e.Fields[k] = v
		}
	}
	return e
}

// Tail returns the last entries of the log at path whose level is at least
// minLevel. At most maxLines lines are scanned.
func Tail(path string, maxLines int, minLevel zapcore.Level) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if e := Parse(line); e.Level >= minLevel {
			out = append(out, e)
		}
	}
	return out, nil
}

// Format renders an entry on one line: time, level, logger, message and
// the remaining fields sorted by key.
func Format(e Entry) string {
	if e.Raw != "" {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level.String()))
	if e.Logger != "" {
		b.WriteString(e.Logger)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}
