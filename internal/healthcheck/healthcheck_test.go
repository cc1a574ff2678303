package healthcheck_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/currency-exchange/internal/healthcheck"
)

type switchProbe struct {
	failing atomic.Bool
	calls   atomic.Int32
}

func (p *switchProbe) Check(context.Context) error {
	p.calls.Add(1)
	if p.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

var _ = Describe("Healthcheck", func() {
	var (
		log   *slog.Logger
		db    *switchProbe
		redis *switchProbe
		m     *healthcheck.Monitor
		ctx   context.Context
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
		db = &switchProbe{}
		redis = &switchProbe{}
		m = healthcheck.NewMonitor(20*time.Millisecond, log,
			healthcheck.Probe{Name: "database", Critical: true, Check: db.Check},
			healthcheck.Probe{Name: "cache", Check: redis.Check},
		)
	})

	DescribeTable("combined status",
		func(dbDown, cacheDown bool, expected healthcheck.Status) {
			db.failing.Store(dbDown)
			redis.failing.Store(cacheDown)
			m.CheckNow(ctx)
			Expect(m.Report().Status).To(Equal(expected))
		},
		Entry("all up", false, false, healthcheck.StatusUp),
		Entry("cache down", false, true, healthcheck.StatusDegraded),
		Entry("database down", true, false, healthcheck.StatusDown),
		Entry("both down", true, true, healthcheck.StatusDown),
	)

	It("should record the probe error", func() {
		redis.failing.Store(true)
		m.CheckNow(ctx)

		c := m.Report().Components["cache"]
		Expect(c.Status).To(Equal(healthcheck.StatusDown))
		Expect(c.Critical).To(BeFalse())
		Expect(c.Error).To(Equal("connection refused"))
		Expect(c.CheckedAt).NotTo(BeNil())
	})

	It("should report UP before the first check", func() {
		Expect(m.Report().Status).To(Equal(healthcheck.StatusUp))
	})

	Describe("Run", func() {
		It("should probe periodically and follow recovery", func() {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			redis.failing.Store(true)
			go func() {
				m.Run(runCtx)
				close(done)
			}()

			Eventually(func() healthcheck.Status { return m.Report().Status }).Should(Equal(healthcheck.StatusDegraded))
			redis.failing.Store(false)
			Eventually(func() healthcheck.Status { return m.Report().Status }).Should(Equal(healthcheck.StatusUp))
			Expect(redis.calls.Load()).To(BeNumerically(">=", 2))

			cancel()
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("Handler", func() {
		serve := func() (*httptest.ResponseRecorder, healthcheck.Report) {
			rec := httptest.NewRecorder()
			m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			var report healthcheck.Report
			Expect(json.Unmarshal(rec.Body.Bytes(), &report)).To(Succeed())
			return rec, report
		}

		It("should answer 200 while degraded", func() {
			redis.failing.Store(true)
			m.CheckNow(ctx)

			rec, report := serve()
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(report.Status).To(Equal(healthcheck.StatusDegraded))
		})

		It("should answer 503 while down", func() {
			db.failing.Store(true)
			m.CheckNow(ctx)

			rec, report := serve()
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(report.Components).To(HaveKey("database"))
		})
	})
})
