package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var singletonLog *logrus.Logger
var once sync.Once

const (
	// Default log format will output time="2006-01-02T15:04:05Z07:00" level=warn msg="Log message"
	defaultLogFormat       = "time=\"%time%\" level=%lvl% msg=\"%msg%\""
	defaultTimestampFormat = time.RFC3339
	repoName               = "kubectl-consolidation"
)

// Formatter implements logrus.Formatter interface.
type Formatter struct {
	// Timestamp format
	TimestampFormat string
	// Available standard keys: time, msg, lvl
	// All of fields need to be wrapped inside %% i.e %time% %msg%
	LogFormat string

	CallerPrettyfier func(*runtime.Frame) (function string, file string)
}

// Format building log message.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.LogFormat
	if output == "" {
		output = defaultLogFormat
	}

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = defaultTimestampFormat
	}

	output = strings.Replace(output, "%time%", entry.Time.Format(timestampFormat), 1)
	output = strings.Replace(output, "%msg%", entry.Message, 1)
	output = strings.Replace(output, "%lvl%", strings.ToLower(entry.Level.String()), 1)

	// fields are sorted so two runs log identically
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		output = fmt.Sprintf("%s %s=\"%v\"", output, k, entry.Data[k])
	}

	var funcVal, fileVal string
	if entry.HasCaller() {
		if f.CallerPrettyfier != nil {
			funcVal, fileVal = f.CallerPrettyfier(entry.Caller)
		} else {
			funcVal = entry.Caller.Function
			fileVal = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
		}

		if funcVal != "" {
			output = fmt.Sprintf("%s func=\"%s\"", output, funcVal)
		}
		if fileVal != "" {
			output = fmt.Sprintf("%s file=\"%s\"", output, fileVal)
		}
	}

	output = fmt.Sprintf("%s\n", output)
	return []byte(output), nil
}

func GetLogger() *logrus.Logger {
	once.Do(func() {
		singletonLog = logrus.New()
		singletonLog.Out = os.Stderr
		singletonLog.Level = logrus.WarnLevel
		singletonLog.Formatter = &Formatter{}
	})

	return singletonLog
}

// SetLogLevel parses level and applies it to the shared logger. Debug level
// also turns on caller reporting.
func SetLogLevel(level string) error {
	log := GetLogger()
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if lvl >= logrus.DebugLevel {
		log.SetReportCaller(true)
		log.Formatter = &Formatter{
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename1 := strings.Split(f.File, repoName)
				if len(filename1) > 1 {
					return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename1[1], f.Line)
				}

				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", f.File, f.Line)
			},
		}
	}
	return nil
}

func GetJsonStr(obj interface{}) string {
	b, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(b)
}

