package log

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders an entry through the pattern. Supported placeholders:
// %time, %level, %field, %msg, %caller, %func, %goroutine.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%caller", getCaller(entry), 1)
	output = strings.Replace(output, "%func", getFunc(entry), 1)
	output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	return []byte(output), nil
}

// getCaller returns "pkg/file.go:line".
func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if i := strings.LastIndex(file, "/"); i != -1 && i+1 < len(file) {
		file = file[i+1:]
	}
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		if parts := strings.Split(fn, "."); len(parts) > 1 {
			segs := strings.Split(parts[0], "/")
			pkg = segs[len(segs)-1]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

func getFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	fn := entry.Caller.Function
	if i := strings.LastIndex(fn, "."); i != -1 && i+1 < len(fn) {
		return fn[i+1:]
	}
	return fn
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if f := strings.Fields(stack); len(f) > 0 {
		return f[0]
	}
	return "unknown"
}

// buildFields renders entry data as sorted key=value pairs.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val := entry.Data[k]
		s, ok := val.(string)
		if !ok {
			if err, isErr := val.(error); isErr {
				s = err.Error()
			} else {
				s = fmt.Sprint(val)
			}
		}
		fields = append(fields, k+"="+s)
	}
	return strings.Join(fields, ",")
}
