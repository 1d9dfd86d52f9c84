package logger

import (
	"bytes"
	"encoding/json"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

// bufferLogger writes JSON entries at debug level into buf.
func bufferLogger(buf *bytes.Buffer, opts ...zap.Option) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(jsonEncoderConfig()),
		zapcore.AddSync(buf),
		zap.DebugLevel,
	)
	return &Logger{wrappedLogger: zap.New(core, opts...)}
}

func lastEntry(buf *bytes.Buffer) map[string]interface{} {
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	entry := map[string]interface{}{}
	Expect(json.Unmarshal(lines[len(lines)-1], &entry)).To(Succeed())
	return entry
}

var _ = Describe("Logger", func() {
	DescribeTable("#configFor",
		func(env environments.Environment, level zapcore.Level, encoding string, quietCaller bool, sampled bool, discard bool) {
			cfg := configFor(env)

			Expect(cfg.Level.Level()).To(Equal(level))
			Expect(cfg.Encoding).To(Equal(encoding))
			Expect(cfg.DisableCaller).To(Equal(quietCaller))
			Expect(cfg.DisableStacktrace).To(Equal(quietCaller))
			Expect(cfg.Sampling != nil).To(Equal(sampled))
			if discard {
				Expect(cfg.OutputPaths).To(BeEmpty())
				Expect(cfg.ErrorOutputPaths).To(BeEmpty())
			} else {
				Expect(cfg.OutputPaths).To(Equal([]string{"stdout"}))
				Expect(cfg.ErrorOutputPaths).To(Equal([]string{"stderr"}))
			}
		},
		Entry("production", environments.Production, zap.InfoLevel, "json", false, true, false),
		Entry("staging", environments.Staging, zap.InfoLevel, "json", true, false, false),
		Entry("development", environments.Development, zap.DebugLevel, "console", true, false, false),
		Entry("test", environments.Test, zap.InfoLevel, "json", false, false, true),
		Entry("unknown falls back to production", environments.Environment("qa"), zap.InfoLevel, "json", false, true, false),
	)

	Describe("#configFor initial fields", func() {
		It("tags json output with the service and environment", func() {
			cfg := configFor(environments.Staging)
			Expect(cfg.InitialFields).To(HaveKeyWithValue("service", serviceName))
			Expect(cfg.InitialFields).To(HaveKeyWithValue("env", "staging"))
		})

		It("reports unknown environments as production", func() {
			cfg := configFor(environments.Environment("qa"))
			Expect(cfg.InitialFields).To(HaveKeyWithValue("env", "production"))
		})
	})

	Describe("#New", func() {
		It("builds a logger for every environment", func() {
			for _, env := range []environments.Environment{
				environments.Production,
				environments.Staging,
				environments.Development,
				environments.Test,
			} {
				l := New(env)
				Expect(l).NotTo(BeNil())
				Expect(l.wrappedLogger).NotTo(BeNil())
			}
		})

		It("drops debug entries outside development", func() {
			core := New(environments.Environment("qa")).wrappedLogger.Core()
			Expect(core.Enabled(zapcore.InfoLevel)).To(BeTrue())
			Expect(core.Enabled(zapcore.DebugLevel)).To(BeFalse())
		})
	})

	Describe("levels", func() {
		var buf *bytes.Buffer

		BeforeEach(func() {
			buf = &bytes.Buffer{}
		})

		DescribeTable("writes the entry with its fields",
			func(write func(l *Logger), level string) {
				write(bufferLogger(buf))

				entry := lastEntry(buf)
				Expect(entry).To(HaveKeyWithValue("level", level))
				Expect(entry).To(HaveKeyWithValue("payment_link_id", "pl_1"))
			},
			Entry("debug", func(l *Logger) { l.Debug("scan", map[string]string{"payment_link_id": "pl_1"}) }, "debug"),
			Entry("info", func(l *Logger) { l.Info("detected", map[string]string{"payment_link_id": "pl_1"}) }, "info"),
			Entry("warn", func(l *Logger) { l.Warn("underpaid", map[string]string{"payment_link_id": "pl_1"}) }, "warn"),
			Entry("error", func(l *Logger) { l.Error("sweep failed", map[string]string{"payment_link_id": "pl_1"}) }, "error"),
		)

		It("accepts a message without fields", func() {
			bufferLogger(buf).Info("started")
			Expect(lastEntry(buf)).To(HaveKeyWithValue("msg", "started"))
		})

		It("calls the fatal hook", func() {
			hook := &fatalHook{}
			bufferLogger(buf, zap.WithFatalHook(hook)).Fatal("unrecoverable", map[string]string{"key": "value"})
			Expect(hook.called).To(BeTrue())
		})
	})

	Describe("#With", func() {
		It("attaches fields to every entry of the child logger", func() {
			buf := &bytes.Buffer{}
			child := bufferLogger(buf).With(map[string]string{"component": "settlement"})
			child.Info("job started", map[string]string{"payment_link_id": "pl_1"})

			entry := lastEntry(buf)
			Expect(entry).To(HaveKeyWithValue("component", "settlement"))
			Expect(entry).To(HaveKeyWithValue("payment_link_id", "pl_1"))
		})
	})

	Describe("#transformStrMapToFields", func() {
		It("maps each pair to a string field", func() {
			fields := transformStrMapToFields(map[string]string{"chain_id": "8453", "tx_hash": "0xabc"})
			sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })

			Expect(fields).To(Equal([]zap.Field{zap.String("chain_id", "8453"), zap.String("tx_hash", "0xabc")}))
		})

		It("returns no fields for an empty map", func() {
			Expect(transformStrMapToFields(nil)).To(BeEmpty())
		})
	})
})
