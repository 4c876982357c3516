package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Init 日志初始化：JSON格式 + service字段，级别取LOG_LEVEL
func Init(serviceName string) {
	std.SetFormatter(&logrus.JSONFormatter{})
	if lv, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		std.SetLevel(lv)
	}
	std.AddHook(&serviceHook{service: serviceName})
}

// SetLevel _
func SetLevel(level string) {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		Warnf("unknown log level %q, keep %s", level, std.GetLevel())
		return
	}
	std.SetLevel(lv)
}

// Logger 暴露底层logrus实例（gorm日志、测试中重定向输出用）
func Logger() *logrus.Logger {
	return std
}

func LoadPrintProjectName(projectName string) {
	// 字体选slant，比colossal紧凑
	myFigure := figure.NewFigure(projectName, "slant", true)
	fmt.Println("\n" + myFigure.String())
}

func WithField(key string, value interface{}) *logrus.Entry {
	return std.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func WithTenant(tenantID string) *logrus.Entry {
	return std.WithField("tenant_id", tenantID)
}

func Debug(args ...interface{}) {
	std.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	std.Debugf(format, args...)
}

func Info(args ...interface{}) {
	std.Info(args...)
}

func Infof(format string, args ...interface{}) {
	std.Infof(format, args...)
}

func Warn(args ...interface{}) {
	std.Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	std.Warnf(format, args...)
}

func Error(args ...interface{}) {
	std.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	std.Errorf(format, args...)
}

func Fatal(args ...interface{}) {
	std.Fatal(args...)
}

func Fatalf(format string, args ...interface{}) {
	std.Fatalf(format, args...)
}

type serviceHook struct {
	service string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = h.service
	}
	return nil
}
