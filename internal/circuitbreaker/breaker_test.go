package circuitbreaker_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/currency-exchange/internal/circuitbreaker"
)

type fakeClock struct {
	nanos atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.nanos.Store(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load())
}

func (c *fakeClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

var _ = Describe("Breaker", func() {
	var (
		cb    *circuitbreaker.Breaker
		clock *fakeClock
	)

	BeforeEach(func() {
		clock = newFakeClock()
		cb = circuitbreaker.New(5*time.Second, circuitbreaker.WithClock(clock.Now))
	})

	Describe("New", func() {
		It("should create a breaker in closed state", func() {
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.IsOpen()).To(BeFalse())
			Expect(cb.LastFailure().IsZero()).To(BeTrue())
		})

		It("should fall back to the default retry interval", func() {
			Expect(circuitbreaker.New(0).RetryInterval()).To(Equal(circuitbreaker.DefaultRetryInterval))
			Expect(circuitbreaker.New(-time.Second).RetryInterval()).To(Equal(5 * time.Second))
		})
	})

	Describe("State transitions", func() {
		Context("when closed", func() {
			It("should allow requests", func() {
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should open after a single failure", func() {
				Expect(cb.RecordFailure()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
				Expect(cb.LastFailure()).To(Equal(time.UnixMilli(clock.Now().UnixMilli())))
			})

			It("should report no transition on success", func() {
				Expect(cb.RecordSuccess()).To(BeFalse())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})

		Context("when open", func() {
			BeforeEach(func() {
				cb.RecordFailure()
			})

			It("should block requests inside the retry interval", func() {
				Expect(cb.Allow()).To(BeFalse())
				clock.Advance(5 * time.Second)
				Expect(cb.Allow()).To(BeFalse())
			})

			It("should allow a trial once the retry interval has elapsed", func() {
				clock.Advance(5*time.Second + time.Millisecond)
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should keep allowing trials until a result is recorded", func() {
				clock.Advance(6 * time.Second)
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should not report a second opening", func() {
				Expect(cb.RecordFailure()).To(BeFalse())
			})

			It("should restart the retry window on a failed trial", func() {
				clock.Advance(6 * time.Second)
				Expect(cb.Allow()).To(BeTrue())

				cb.RecordFailure()
				Expect(cb.Allow()).To(BeFalse())
			})

			It("should close on success", func() {
				clock.Advance(6 * time.Second)
				Expect(cb.RecordSuccess()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should keep the failure timestamp after closing", func() {
				failedAt := cb.LastFailure()
				clock.Advance(6 * time.Second)
				cb.RecordSuccess()
				Expect(cb.LastFailure()).To(Equal(failedAt))
			})
		})
	})

	Describe("Concurrent access", func() {
		It("should tolerate racing successes and failures", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 3)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
				go func() {
					defer wg.Done()
					cb.RecordSuccess()
				}()
				go func() {
					defer wg.Done()
					_ = cb.Allow()
				}()
			}

			wg.Wait()

			Expect(cb.State()).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})

		It("should report exactly one opening among concurrent failures", func() {
			const goroutines = 50

			var opened atomic.Int32
			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					if cb.RecordFailure() {
						opened.Add(1)
					}
				}()
			}

			wg.Wait()
			Expect(opened.Load()).To(Equal(int32(1)))
		})
	})

	Describe("State.String", func() {
		It("should return correct string representation", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF-OPEN"))
			Expect(circuitbreaker.State(42).String()).To(Equal("UNKNOWN"))
		})
	})
})
